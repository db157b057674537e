package cart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/jackc/pgx/v5"

	"vinylshop/internal/db"
	"vinylshop/internal/domain"
	cartrepo "vinylshop/internal/repository/cart"
)

// Service is the cart engine. Every stock check and the write it gates run
// inside one transaction with the record row locked, so two concurrent
// mutations for the same record cannot both validate against stale stock.
type Service struct {
	db      txBeginner
	carts   cartStore
	records recordStore
	logger  *log.Logger
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type cartStore interface {
	GetOrCreateByUser(ctx context.Context, userID string) (*domain.Cart, error)
	GetItemForUpdate(ctx context.Context, q db.Querier, itemID string) (*cartrepo.OwnedItem, error)
	GetItemQuantity(ctx context.Context, q db.Querier, cartID, recordID string) (int, error)
	UpsertItem(ctx context.Context, q db.Querier, cartID, recordID string, quantity int) error
	DeleteItemForUser(ctx context.Context, itemID, userID string) (bool, error)
}

type recordStore interface {
	GetForUpdate(ctx context.Context, q db.Querier, id string) (*domain.Record, error)
}

func New(dbc txBeginner, carts cartStore, records recordStore, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{db: dbc, carts: carts, records: records, logger: logger}
}

// GuestItem is one line of a guest cart submitted for merging.
type GuestItem struct {
	RecordID string `json:"recordId"`
	Quantity int    `json:"quantity"`
}

// GetCart returns the user's cart with live record details, creating it on
// first access.
func (s *Service) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	return s.carts.GetOrCreateByUser(ctx, userID)
}

// AddItem puts quantity copies of a record into the cart, summing with any
// existing line. The record must be for sale, not owned by the requesting
// user, and the summed quantity must fit current stock.
func (s *Service) AddItem(ctx context.Context, userID, recordID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}

	cart, err := s.carts.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rec, err := s.records.GetForUpdate(ctx, tx, recordID)
	if err != nil {
		return nil, err
	}
	if err := s.purchasable(rec, userID); err != nil {
		return nil, err
	}

	existing, err := s.carts.GetItemQuantity(ctx, tx, cart.ID, recordID)
	if err != nil {
		return nil, err
	}
	total := existing + quantity
	if total > rec.Quantity {
		return nil, fmt.Errorf("%w: only %d in stock", domain.ErrConflict, rec.Quantity)
	}
	if err := s.carts.UpsertItem(ctx, tx, cart.ID, recordID, total); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return s.carts.GetOrCreateByUser(ctx, userID)
}

// UpdateItem sets the absolute quantity of an existing cart item. Zero is
// rejected; removal is a separate operation.
func (s *Service) UpdateItem(ctx context.Context, userID, itemID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, remove the item instead", domain.ErrValidation)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	item, err := s.carts.GetItemForUpdate(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}
	if item.UserID != userID {
		return nil, domain.ErrNotFound
	}

	rec, err := s.records.GetForUpdate(ctx, tx, item.RecordID)
	if err != nil {
		return nil, err
	}
	if rec.Status != domain.StatusForSale {
		return nil, fmt.Errorf("%w: record no longer for sale", domain.ErrConflict)
	}
	if quantity > rec.Quantity {
		return nil, fmt.Errorf("%w: only %d in stock", domain.ErrConflict, rec.Quantity)
	}
	if err := s.carts.UpsertItem(ctx, tx, item.CartID, item.RecordID, quantity); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return s.carts.GetOrCreateByUser(ctx, userID)
}

// RemoveItem deletes a cart item. Removing an already-absent item is not an
// error; the current cart is returned either way.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID string) (*domain.Cart, error) {
	removed, err := s.carts.DeleteItemForUser(ctx, itemID, userID)
	if err != nil {
		return nil, err
	}
	if !removed {
		s.logger.Printf("cart: remove item=%s user=%s: already absent", itemID, userID)
	}
	return s.carts.GetOrCreateByUser(ctx, userID)
}

// MergeGuestCart folds a guest cart into the user's cart in one transaction.
// Quantities for the same record are summed and capped at live stock;
// zero-stock and otherwise unusable items are skipped with a warning, never
// failing the whole merge.
func (s *Service) MergeGuestCart(ctx context.Context, userID string, items []GuestItem) (*domain.Cart, error) {
	cart, err := s.carts.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for _, gi := range items {
		if gi.Quantity <= 0 {
			s.logger.Printf("cart merge: record=%s skipped: non-positive quantity %d", gi.RecordID, gi.Quantity)
			continue
		}
		rec, err := s.records.GetForUpdate(ctx, tx, gi.RecordID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				s.logger.Printf("cart merge: record=%s skipped: unknown record", gi.RecordID)
				continue
			}
			return nil, err
		}
		if err := s.purchasable(rec, userID); err != nil {
			s.logger.Printf("cart merge: record=%s skipped: %v", gi.RecordID, err)
			continue
		}
		if rec.Quantity == 0 {
			s.logger.Printf("cart merge: record=%s skipped: out of stock", gi.RecordID)
			continue
		}

		existing, err := s.carts.GetItemQuantity(ctx, tx, cart.ID, gi.RecordID)
		if err != nil {
			return nil, err
		}
		total := existing + gi.Quantity
		if total > rec.Quantity {
			s.logger.Printf("cart merge: record=%s capped at stock %d (wanted %d)", gi.RecordID, rec.Quantity, total)
			total = rec.Quantity
		}
		if err := s.carts.UpsertItem(ctx, tx, cart.ID, gi.RecordID, total); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.carts.GetOrCreateByUser(ctx, userID)
}

func (s *Service) purchasable(rec *domain.Record, userID string) error {
	if rec.Status != domain.StatusForSale {
		return fmt.Errorf("%w: record not for sale", domain.ErrConflict)
	}
	if rec.OwnerID != nil && *rec.OwnerID == userID {
		return fmt.Errorf("%w: cannot buy your own record", domain.ErrValidation)
	}
	return nil
}
