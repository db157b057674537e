package cart

import (
	"context"

	"vinylshop/internal/db"
	"vinylshop/internal/domain"
)

// OwnedItem is a cart item joined with its cart's owner, used for ownership
// checks on item mutations.
type OwnedItem struct {
	domain.CartItem
	UserID string
}

type Repository interface {
	// GetOrCreateByUser returns the user's cart with items and live record
	// details, creating the cart row on first access.
	GetOrCreateByUser(ctx context.Context, userID string) (*domain.Cart, error)

	// GetItemForUpdate locks the cart item row and returns it with the
	// owning user's id. domain.ErrNotFound when absent.
	GetItemForUpdate(ctx context.Context, q db.Querier, itemID string) (*OwnedItem, error)

	// GetItemQuantity returns the current quantity for (cart, record), zero
	// when no such item exists.
	GetItemQuantity(ctx context.Context, q db.Querier, cartID, recordID string) (int, error)

	// UpsertItem sets the absolute quantity for (cart, record), inserting
	// the row when missing.
	UpsertItem(ctx context.Context, q db.Querier, cartID, recordID string, quantity int) error

	// DeleteItemForUser removes the item if it belongs to the user's cart.
	// Returns false (no error) when the item was already absent.
	DeleteItemForUser(ctx context.Context, itemID, userID string) (bool, error)

	// ClearByUser deletes all cart items for the user, keeping the cart row.
	ClearByUser(ctx context.Context, q db.Querier, userID string) error
}
