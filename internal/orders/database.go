package orders

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ksred/order-api/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateOrderWithExecution writes an order and its execution as one unit:
// both rows commit or neither does. A duplicate idempotency key surfaces here
// as a conflict even when two requests race past the guard's pre-check, since
// the unique index on idempotency_key is the source of truth.
func (d *Database) CreateOrderWithExecution(order *types.Order, execution *types.Execution) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(order).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return types.NewError(types.CodeConflict,
				fmt.Sprintf("Idempotency key %s is already used.", order.IdempotencyKey))
		}
		return err
	}

	execution.OrderRefID = order.ID
	if err := tx.Create(execution).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

func (d *Database) GetOrderByInternalID(internalID string) (*types.Order, error) {
	var order types.Order
	if err := d.db.Preload("Execution").Where("internal_id = ?", internalID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) GetOrdersByAccountID(accountID string) ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Preload("Execution").Where("account_id = ?", accountID).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *Database) GetOrderByIdempotencyKey(key string) (*types.Order, error) {
	var order types.Order
	if err := d.db.Where("idempotency_key = ?", key).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// UpdateOrder is the store's generic update path, guarded by the version
// column so a stale writer loses rather than overwriting. Orders are
// immutable through the API, so nothing in the placement workflow calls this.
func (d *Database) UpdateOrder(order *types.Order) error {
	result := d.db.Model(&types.Order{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(map[string]interface{}{
			"status":  order.Status,
			"version": order.Version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return types.NewError(types.CodeConflict, "order was modified concurrently")
	}
	order.Version++
	return nil
}
