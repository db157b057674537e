package order

import (
	"context"

	"vinylshop/internal/db"
	"vinylshop/internal/domain"
)

type CreateOrderInput struct {
	CheckoutSessionID string
	UserID            string
	Email             string
	AmountCents       int64
	Currency          string
}

type CreateItemInput struct {
	OrderID    string
	RecordID   string
	Artist     string
	Title      string
	PriceCents int64
	Quantity   int
}

type Repository interface {
	// GetBySessionID returns the order created for a checkout session,
	// items included. domain.ErrNotFound when no such order exists.
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error)

	// Create inserts a PAID order. A duplicate checkout session id returns
	// domain.ErrConflict, which settlement treats as a concurrent duplicate
	// of the same event.
	Create(ctx context.Context, q db.Querier, in CreateOrderInput) (*domain.Order, error)

	// AddItem inserts one immutable order item snapshot.
	AddItem(ctx context.Context, q db.Querier, in CreateItemInput) (*domain.OrderItem, error)

	// HasItemsForRecord reports whether any order item references the
	// record. The reconciler calls this inside its transaction so the
	// answer cannot go stale against a concurrent settlement.
	HasItemsForRecord(ctx context.Context, q db.Querier, recordID string) (bool, error)
}
