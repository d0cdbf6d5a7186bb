package orders

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ksred/order-api/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.Order{}, &types.Execution{}))
	return db
}

func newOrder(accountID, key string) (*types.Order, *types.Execution) {
	order := &types.Order{
		InternalID:     uuid.New().String(),
		AccountID:      accountID,
		Symbol:         "AAPL",
		Side:           types.SideBuy,
		Quantity:       10,
		Status:         types.StatusProcessed,
		IdempotencyKey: key,
	}
	execution := &types.Execution{
		InternalID: uuid.New().String(),
		Price:      decimal.RequireFromString("203.55"),
	}
	return order, execution
}

func TestCreateOrderWithExecution(t *testing.T) {
	db := newTestDB(t)
	store := NewDatabase(db)

	order, execution := newOrder("A1", strings.Repeat("a", 32))
	require.NoError(t, store.CreateOrderWithExecution(order, execution))

	assert.Equal(t, order.ID, execution.OrderRefID)

	fetched, err := store.GetOrderByInternalID(order.InternalID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	require.NotNil(t, fetched.Execution, "a PROCESSED order must carry its execution")
	assert.Equal(t, execution.InternalID, fetched.Execution.InternalID)
	assert.True(t, fetched.Execution.Price.Equal(decimal.RequireFromString("203.55")))
}

func TestStoreCreateOrderDuplicateIdempotencyKey(t *testing.T) {
	db := newTestDB(t)
	store := NewDatabase(db)
	key := strings.Repeat("b", 32)

	first, firstExec := newOrder("A1", key)
	require.NoError(t, store.CreateOrderWithExecution(first, firstExec))

	// A second writer racing past the guard's pre-check must be rejected by
	// the unique constraint at write time.
	second, secondExec := newOrder("A2", key)
	err := store.CreateOrderWithExecution(second, secondExec)

	var appErr *types.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.CodeConflict, appErr.Code)

	var count int64
	require.NoError(t, db.Model(&types.Order{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&types.Execution{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "failed order write must not leave an orphaned execution")
}

func TestExecutionUniquePerOrder(t *testing.T) {
	db := newTestDB(t)
	store := NewDatabase(db)

	order, execution := newOrder("A1", strings.Repeat("c", 32))
	require.NoError(t, store.CreateOrderWithExecution(order, execution))

	extra := &types.Execution{
		InternalID: uuid.New().String(),
		OrderRefID: order.ID,
		Price:      decimal.RequireFromString("1.00"),
	}
	err := db.Create(extra).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey, "schema must enforce one execution per order")
}

func TestGetOrderByInternalIDMissing(t *testing.T) {
	store := NewDatabase(newTestDB(t))

	order, err := store.GetOrderByInternalID("does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, order)
}

func TestGetOrderByIdempotencyKey(t *testing.T) {
	db := newTestDB(t)
	store := NewDatabase(db)
	key := strings.Repeat("d", 32)

	order, execution := newOrder("A1", key)
	require.NoError(t, store.CreateOrderWithExecution(order, execution))

	found, err := store.GetOrderByIdempotencyKey(key)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, order.InternalID, found.InternalID)

	missing, err := store.GetOrderByIdempotencyKey(strings.Repeat("e", 32))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStoreGetOrdersByAccountID(t *testing.T) {
	db := newTestDB(t)
	store := NewDatabase(db)

	first, firstExec := newOrder("A1", strings.Repeat("f", 32))
	require.NoError(t, store.CreateOrderWithExecution(first, firstExec))
	second, secondExec := newOrder("A1", strings.Repeat("g", 32))
	require.NoError(t, store.CreateOrderWithExecution(second, secondExec))
	other, otherExec := newOrder("A2", strings.Repeat("h", 32))
	require.NoError(t, store.CreateOrderWithExecution(other, otherExec))

	found, err := store.GetOrdersByAccountID("A1")
	require.NoError(t, err)

	ids := make(map[string]bool, len(found))
	for _, order := range found {
		ids[order.InternalID] = true
	}
	assert.Equal(t, map[string]bool{first.InternalID: true, second.InternalID: true}, ids)

	none, err := store.GetOrdersByAccountID("A3")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpdateOrderOptimisticLocking(t *testing.T) {
	db := newTestDB(t)
	store := NewDatabase(db)

	order, execution := newOrder("A1", strings.Repeat("i", 32))
	require.NoError(t, store.CreateOrderWithExecution(order, execution))

	stale := *order

	order.Status = types.StatusFailed
	require.NoError(t, store.UpdateOrder(order))
	assert.Equal(t, order.Version, stale.Version+1)

	// The stale copy still carries the old version token and must lose.
	stale.Status = types.StatusProcessed
	err := store.UpdateOrder(&stale)

	var appErr *types.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.CodeConflict, appErr.Code)
}
