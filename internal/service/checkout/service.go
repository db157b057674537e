package checkout

import (
	"context"
	"fmt"
	"io"
	"log"

	"vinylshop/internal/domain"
	"vinylshop/internal/payments"
)

// Service turns a cart into a payment-provider checkout session. Stock is
// validated here against the live mirror even though the cart engine already
// validated it on write; every boundary re-checks rather than trusting
// upstream, and settlement re-checks once more under a row lock.
type Service struct {
	carts      cartStore
	provider   payments.Provider
	currency   string
	successURL string
	cancelURL  string
	logger     *log.Logger
}

type cartStore interface {
	GetOrCreateByUser(ctx context.Context, userID string) (*domain.Cart, error)
}

func New(carts cartStore, provider payments.Provider, currency, successURL, cancelURL string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		carts:      carts,
		provider:   provider,
		currency:   currency,
		successURL: successURL,
		cancelURL:  cancelURL,
		logger:     logger,
	}
}

// CreateSession builds a checkout session for the user's cart. An empty cart
// is a validation error; an unavailable or understocked item is a conflict.
func (s *Service) CreateSession(ctx context.Context, userID string) (*payments.Session, error) {
	cart, err := s.carts.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", domain.ErrValidation)
	}

	params := payments.SessionParams{
		UserID:     userID,
		Currency:   s.currency,
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
	}
	for _, item := range cart.Items {
		rec := item.Record
		if rec == nil {
			return nil, fmt.Errorf("%w: cart item %s has no record", domain.ErrConflict, item.ID)
		}
		if rec.Status != domain.StatusForSale {
			return nil, fmt.Errorf("%w: %q is no longer for sale", domain.ErrConflict, rec.Title)
		}
		if item.Quantity > rec.Quantity {
			return nil, fmt.Errorf("%w: only %d of %q in stock", domain.ErrConflict, rec.Quantity, rec.Title)
		}
		params.Lines = append(params.Lines, payments.SessionLine{
			RecordID:   rec.ID,
			Artist:     rec.Artist,
			Title:      rec.Title,
			PriceCents: rec.PriceCents,
			Quantity:   item.Quantity,
		})
	}

	session, err := s.provider.CreateSession(ctx, params)
	if err != nil {
		return nil, err
	}
	s.logger.Printf("checkout: session %s created for user %s (%d lines)", session.ID, userID, len(params.Lines))
	return session, nil
}
