package idempotency

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ksred/order-api/internal/types"
)

// Accepted idempotency key lengths, inclusive.
const (
	MinKeyLength = 30
	MaxKeyLength = 36
)

// OrderFinder is the slice of the order store the guard needs: a lookup of
// whether any existing order already used a key.
type OrderFinder interface {
	GetOrderByIdempotencyKey(key string) (*types.Order, error)
}

// Guard validates client-supplied idempotency keys before any price-feed or
// persistence work begins. The check here is a fast path only; the unique
// constraint on the order store's idempotency_key column is the correctness
// guarantee against concurrent duplicates.
type Guard struct {
	orders OrderFinder
}

func NewGuard(orders OrderFinder) *Guard {
	return &Guard{orders: orders}
}

// Admit returns nil when the key is well-formed and unused. A key outside the
// accepted length range is rejected as a bad request; a key already attached
// to an order is rejected as a conflict.
func (g *Guard) Admit(key string) error {
	if len(key) < MinKeyLength || len(key) > MaxKeyLength {
		log.Warn().Str("idempotency_key", key).Msg("idempotency key has invalid length")
		return types.NewError(types.CodeBadRequest, fmt.Sprintf("Idempotency key %s is invalid.", key))
	}

	existing, err := g.orders.GetOrderByIdempotencyKey(key)
	if err != nil {
		return types.WrapError(types.CodeInternalError, "failed to look up idempotency key", err)
	}
	if existing != nil {
		log.Error().
			Str("idempotency_key", key).
			Str("order_internal_id", existing.InternalID).
			Msg("idempotency key already used")
		return types.NewError(types.CodeConflict, fmt.Sprintf("Idempotency key %s is already used.", key))
	}

	log.Debug().Str("idempotency_key", key).Msg("idempotency key is available for new order")
	return nil
}
