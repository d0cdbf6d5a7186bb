package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/order-api/internal/idempotency"
	"github.com/ksred/order-api/internal/pricefeed"
	"github.com/ksred/order-api/internal/types"
	"github.com/ksred/order-api/pkg/response"
)

// PriceFeed resolves a current market price for a symbol.
type PriceFeed interface {
	GetPrice(ctx context.Context, symbol string) (pricefeed.Quote, error)
}

// Service orchestrates order placement: idempotency check, price fetch,
// atomic order+execution write. Each call is independent; there is no shared
// mutable state across requests.
type Service struct {
	db    *Database
	feed  PriceFeed
	guard *idempotency.Guard
}

func NewService(gormDB *gorm.DB, feed PriceFeed) *Service {
	db := NewDatabase(gormDB)
	return &Service{
		db:    db,
		feed:  feed,
		guard: idempotency.NewGuard(db),
	}
}

// PlaceOrder runs the placement workflow. The idempotency guard runs first so
// an invalid or duplicate key costs no price-feed call; any price-fetch
// failure aborts before a row is written. An order only ever persists as
// PROCESSED, together with its execution at the fetched price.
func (s *Service) PlaceOrder(ctx context.Context, req types.OrderRequest, idempotencyKey string) (*types.OrderResponse, error) {
	logger := log.With().
		Str("account_id", req.AccountID).
		Str("symbol", req.Symbol).
		Str("side", req.Side).
		Int64("quantity", req.Quantity).
		Logger()

	if err := s.guard.Admit(idempotencyKey); err != nil {
		return nil, err
	}

	quote, err := s.feed.GetPrice(ctx, req.Symbol)
	if err != nil {
		switch {
		case errors.Is(err, pricefeed.ErrSymbolNotFound):
			return nil, types.NewError(types.CodeUnprocessable,
				fmt.Sprintf("Price not found for symbol: %s.", req.Symbol))
		case errors.Is(err, pricefeed.ErrFeedUnavailable):
			return nil, types.WrapError(types.CodeServiceUnavailable,
				"Service is currently unavailable", err)
		default:
			return nil, types.WrapError(types.CodeInternalError, "failed to fetch price", err)
		}
	}

	now := time.Now()
	order := &types.Order{
		InternalID:     uuid.New().String(),
		AccountID:      req.AccountID,
		Symbol:         req.Symbol,
		Side:           req.Side,
		Quantity:       req.Quantity,
		Status:         types.StatusProcessed,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	execution := &types.Execution{
		InternalID: uuid.New().String(),
		Price:      quote.Price,
		CreatedAt:  now,
	}

	if err := s.db.CreateOrderWithExecution(order, execution); err != nil {
		return nil, err
	}
	order.Execution = execution

	logger.Info().
		Str("order_internal_id", order.InternalID).
		Str("execution_internal_id", execution.InternalID).
		Str("price", quote.Price.String()).
		Msg("order placed")

	return orderToResponse(order), nil
}

// GetOrderByInternalID retrieves a single order; nil result means not found.
func (s *Service) GetOrderByInternalID(internalID string) (*types.OrderResponse, error) {
	order, err := s.db.GetOrderByInternalID(internalID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, nil
	}
	return orderToResponse(order), nil
}

// GetOrdersByAccountID retrieves all orders for an account; the result is
// empty, never nil, when the account has none.
func (s *Service) GetOrdersByAccountID(accountID string) ([]*types.OrderResponse, error) {
	orders, err := s.db.GetOrdersByAccountID(accountID)
	if err != nil {
		return nil, err
	}
	responses := make([]*types.OrderResponse, 0, len(orders))
	for i := range orders {
		responses = append(responses, orderToResponse(&orders[i]))
	}
	return responses, nil
}

// GinHandlers contains HTTP handlers for order endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateOrderHandler handles POST requests to place new orders
// Requires a valid JWT token and an X-Idempotency-Key header
func (h *GinHandlers) CreateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		idempotencyKey := c.GetHeader("X-Idempotency-Key")
		if idempotencyKey == "" {
			response.BadRequest(c, "X-Idempotency-Key header is required")
			return
		}

		var req types.OrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ValidationError(c, err.Error())
			return
		}

		result, err := h.service.PlaceOrder(c.Request.Context(), req, idempotencyKey)
		response.Handle(c, result, err)
	}
}

// GetOrderHandler handles GET requests for a single order by internal id
// URL parameter: internal_id
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		internalID := c.Param("internal_id")
		if internalID == "" {
			response.BadRequest(c, "Order internal id is required")
			return
		}

		order, err := h.service.GetOrderByInternalID(internalID)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		if order == nil {
			response.NotFound(c, "Order not found")
			return
		}

		response.Success(c, order)
	}
}

// GetOrdersByAccountHandler handles GET requests for all orders of an account
// Query parameter: account_id
func (h *GinHandlers) GetOrdersByAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.Query("account_id")
		if accountID == "" {
			response.BadRequest(c, "account_id query parameter is required")
			return
		}

		orders, err := h.service.GetOrdersByAccountID(accountID)
		response.Handle(c, orders, err)
	}
}
