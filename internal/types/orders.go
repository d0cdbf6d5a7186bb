package types

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order sides
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Order statuses. Status is assigned exactly once at creation: orders are
// immutable once written, there is no pending state.
const (
	StatusProcessed = "PROCESSED"
	StatusFailed    = "FAILED"
)

type Order struct {
	gorm.Model     `json:"-"`
	InternalID     string     `gorm:"uniqueIndex" json:"internal_id"`
	AccountID      string     `gorm:"index" json:"account_id"`
	Symbol         string     `json:"symbol"`
	Side           string     `json:"side"` // BUY or SELL
	Quantity       int64      `json:"quantity"`
	Status         string     `json:"status"` // PROCESSED or FAILED
	IdempotencyKey string     `gorm:"uniqueIndex" json:"idempotency_key"`
	Version        uint       `json:"-"`
	Execution      *Execution `gorm:"foreignKey:OrderRefID" json:"execution,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Execution is the fill record produced when an order is successfully priced.
// The unique index on OrderRefID enforces the 1:1 relationship at the schema
// level: an order has at most one execution and an execution belongs to
// exactly one order.
type Execution struct {
	gorm.Model `json:"-"`
	InternalID string          `gorm:"uniqueIndex" json:"internal_id"`
	OrderRefID uint            `gorm:"uniqueIndex" json:"-"`
	Price      decimal.Decimal `gorm:"type:decimal(20,8)" json:"price"`
	Version    uint            `json:"-"`
	CreatedAt  time.Time       `json:"created_at"`
}

// OrderRequest is the inbound create-order payload.
type OrderRequest struct {
	AccountID string `json:"account_id" binding:"required"`
	Symbol    string `json:"symbol" binding:"required"`
	Side      string `json:"side" binding:"required,oneof=BUY SELL"`
	Quantity  int64  `json:"quantity" binding:"required,gte=1"`
}

// OrderResponse is the caller-facing representation of a persisted order.
type OrderResponse struct {
	InternalID string             `json:"internal_id"`
	AccountID  string             `json:"account_id"`
	Symbol     string             `json:"symbol"`
	Side       string             `json:"side"`
	Quantity   int64              `json:"quantity"`
	Status     string             `json:"status"`
	Execution  *ExecutionResponse `json:"execution,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// ExecutionResponse is the caller-facing representation of an execution.
type ExecutionResponse struct {
	InternalID string          `json:"internal_id"`
	OrderID    string          `json:"order_id"`
	Price      decimal.Decimal `json:"price"`
	CreatedAt  time.Time       `json:"created_at"`
}
