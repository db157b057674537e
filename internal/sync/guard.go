package sync

import (
	"context"

	"vinylshop/internal/db"
)

// OrderStore is the slice of the order repository the guard needs.
type OrderStore interface {
	HasItemsForRecord(ctx context.Context, q db.Querier, recordID string) (bool, error)
}

// Guard decides whether a mirrored record may be physically deleted. A record
// referenced by any settled order item must be retained; only its status and
// quantity may transition. The check always runs against the reconciliation
// transaction's querier so it cannot go stale against a concurrent
// settlement.
type Guard struct {
	orders OrderStore
}

func NewGuard(orders OrderStore) *Guard {
	return &Guard{orders: orders}
}

func (g *Guard) CanDelete(ctx context.Context, q db.Querier, recordID string) (bool, error) {
	referenced, err := g.orders.HasItemsForRecord(ctx, q, recordID)
	if err != nil {
		return false, err
	}
	return !referenced, nil
}
