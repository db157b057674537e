package settlement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/jackc/pgx/v5"

	"vinylshop/internal/db"
	"vinylshop/internal/domain"
	"vinylshop/internal/gateway"
	"vinylshop/internal/payments"
	orderrepo "vinylshop/internal/repository/order"
)

// State is the settlement state machine's position. SETTLED and FAILED are
// terminal.
type State string

const (
	StateReceived  State = "RECEIVED"
	StateValidated State = "VALIDATED"
	StateSettling  State = "SETTLING"
	StateSettled   State = "SETTLED"
	StateFailed    State = "FAILED"
)

// Outcome is the terminal result of processing one payment event.
type Outcome struct {
	State     State
	OrderID   string
	Duplicate bool
	Ignored   bool
}

// Notifier delivers the post-commit order confirmation. Failures are logged
// and never roll back the settlement.
type Notifier interface {
	OrderConfirmed(ctx context.Context, order *domain.Order) error
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type recordStore interface {
	GetForUpdate(ctx context.Context, q db.Querier, id string) (*domain.Record, error)
	UpdateInventory(ctx context.Context, q db.Querier, id string, quantity int, status domain.RecordStatus) error
	SetListingID(ctx context.Context, q db.Querier, id string, listingID *int64) error
}

type orderStore interface {
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error)
	Create(ctx context.Context, q db.Querier, in orderrepo.CreateOrderInput) (*domain.Order, error)
	AddItem(ctx context.Context, q db.Querier, in orderrepo.CreateItemInput) (*domain.OrderItem, error)
}

type cartStore interface {
	ClearByUser(ctx context.Context, q db.Querier, userID string) error
}

type eventStore interface {
	Append(ctx context.Context, providerEventID, eventType string, payload []byte) (*domain.WebhookEvent, error)
	MarkStatus(ctx context.Context, id string, status domain.WebhookEventStatus, errMsg string) error
}

// Service converts a confirmed payment event into an immutable order,
// decrements inventory exactly once, and re-synchronizes the remote listing.
// Exclusivity per checkout session comes from the unique constraint on the
// order's session id plus the enclosing transaction; no external lock.
type Service struct {
	db       txBeginner
	records  recordStore
	orders   orderStore
	carts    cartStore
	events   eventStore
	gw       gateway.Gateway
	notifier Notifier
	logger   *log.Logger
}

func New(dbc txBeginner, records recordStore, orders orderStore, carts cartStore, events eventStore, gw gateway.Gateway, notifier Notifier, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		db:       dbc,
		records:  records,
		orders:   orders,
		carts:    carts,
		events:   events,
		gw:       gw,
		notifier: notifier,
		logger:   logger,
	}
}

// Process runs the state machine for one webhook event. On any failure
// before commit the transaction rolls back entirely and no order exists, so
// an identical retry is safe.
func (s *Service) Process(ctx context.Context, ev *payments.Event, payload []byte) (Outcome, error) {
	logged, err := s.events.Append(ctx, ev.ID, ev.Type, payload)
	if err != nil {
		// The event log is an audit trail, not the idempotency mechanism;
		// a logging failure must not drop a paid order.
		s.logger.Printf("settlement: event log append failed for %s: %v", ev.ID, err)
		logged = nil
	}

	if ev.Type != payments.EventTypeCheckoutCompleted {
		s.mark(ctx, logged, domain.WebhookSkipped, "unhandled event type")
		return Outcome{State: StateReceived, Ignored: true}, nil
	}

	// Idempotency: at most one order per checkout session.
	if existing, err := s.orders.GetBySessionID(ctx, ev.SessionID); err == nil {
		s.logger.Printf("settlement: session %s already settled as order %s", ev.SessionID, existing.ID)
		s.mark(ctx, logged, domain.WebhookSkipped, "duplicate of order "+existing.ID)
		return Outcome{State: StateSettled, OrderID: existing.ID, Duplicate: true}, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.mark(ctx, logged, domain.WebhookFailed, err.Error())
		return Outcome{State: StateFailed}, err
	}

	// Validation: every paid line must carry its record linkage. Charging
	// for an unidentifiable item is never resolved heuristically.
	if len(ev.Lines) == 0 {
		err := fmt.Errorf("%w: paid session %s has no line items", domain.ErrValidation, ev.SessionID)
		s.mark(ctx, logged, domain.WebhookFailed, err.Error())
		return Outcome{State: StateFailed}, err
	}
	for i, line := range ev.Lines {
		if line.RecordID == "" {
			err := fmt.Errorf("%w: line %d of session %s missing record linkage", domain.ErrCriticalInvariant, i, ev.SessionID)
			s.mark(ctx, logged, domain.WebhookFailed, err.Error())
			return Outcome{State: StateFailed}, err
		}
		if line.Quantity <= 0 {
			err := fmt.Errorf("%w: line %d of session %s has non-positive quantity", domain.ErrValidation, i, ev.SessionID)
			s.mark(ctx, logged, domain.WebhookFailed, err.Error())
			return Outcome{State: StateFailed}, err
		}
	}
	s.logger.Printf("settlement: session %s %s", ev.SessionID, StateValidated)

	order, err := s.settle(ctx, ev)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Lost the race to a concurrent delivery of the same session.
			if existing, getErr := s.orders.GetBySessionID(ctx, ev.SessionID); getErr == nil {
				s.mark(ctx, logged, domain.WebhookSkipped, "duplicate of order "+existing.ID)
				return Outcome{State: StateSettled, OrderID: existing.ID, Duplicate: true}, nil
			}
		}
		s.mark(ctx, logged, domain.WebhookFailed, err.Error())
		return Outcome{State: StateFailed}, err
	}

	s.mark(ctx, logged, domain.WebhookProcessed, "")

	// Post-commit, best effort only.
	if s.notifier != nil {
		if err := s.notifier.OrderConfirmed(ctx, order); err != nil {
			s.logger.Printf("settlement: confirmation for order %s failed: %v", order.ID, err)
		}
	}

	return Outcome{State: StateSettled, OrderID: order.ID}, nil
}

// settle runs the SETTLING transaction: order creation, per-line stock
// re-validation under row locks, immutable snapshots, inventory decrement,
// remote listing resync, and cart clearing. The remote calls are slow
// relative to typical transactions; the enclosing context must be generous.
func (s *Service) settle(ctx context.Context, ev *payments.Event) (*domain.Order, error) {
	s.logger.Printf("settlement: session %s %s", ev.SessionID, StateSettling)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := s.orders.Create(ctx, tx, orderrepo.CreateOrderInput{
		CheckoutSessionID: ev.SessionID,
		UserID:            ev.UserID,
		Email:             ev.Email,
		AmountCents:       ev.AmountCents,
		Currency:          ev.Currency,
	})
	if err != nil {
		return nil, err
	}

	for _, line := range ev.Lines {
		rec, err := s.records.GetForUpdate(ctx, tx, line.RecordID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("%w: paid record %s not in mirror", domain.ErrCriticalInvariant, line.RecordID)
			}
			return nil, err
		}
		// The checkout-time check can be stale by now; this is the
		// authoritative one.
		if rec.Status != domain.StatusForSale || rec.Quantity < line.Quantity {
			return nil, fmt.Errorf("%w: record %s cannot cover paid quantity %d (status=%s stock=%d)",
				domain.ErrCriticalInvariant, rec.ID, line.Quantity, rec.Status, rec.Quantity)
		}

		item, err := s.orders.AddItem(ctx, tx, orderrepo.CreateItemInput{
			OrderID:    order.ID,
			RecordID:   rec.ID,
			Artist:     rec.Artist,
			Title:      rec.Title,
			PriceCents: rec.PriceCents,
			Quantity:   line.Quantity,
		})
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, *item)

		remaining := rec.Quantity - line.Quantity
		status := domain.StatusForSale
		if remaining == 0 {
			status = domain.StatusSold
		}
		if err := s.records.UpdateInventory(ctx, tx, rec.ID, remaining, status); err != nil {
			return nil, err
		}

		if rec.ListingID != nil {
			if err := s.resyncListing(ctx, tx, rec, remaining); err != nil {
				return nil, err
			}
		}
	}

	if ev.UserID != "" {
		if err := s.carts.ClearByUser(ctx, tx, ev.UserID); err != nil {
			return nil, err
		}
	} else {
		s.logger.Printf("settlement: session %s has no user metadata, cart not cleared", ev.SessionID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return order, nil
}

// resyncListing reflects the new quantity on the marketplace. The remote API
// has no partial-quantity update, so a remaining stock change is expressed as
// delete + recreate. A failed delete is a warning and the relist proceeds; a
// failed relist after a successful delete aborts the settlement, because the
// listing would otherwise be gone with no replacement.
func (s *Service) resyncListing(ctx context.Context, tx pgx.Tx, rec *domain.Record, remaining int) error {
	deleteErr := s.gw.DeleteListing(ctx, *rec.ListingID)
	if deleteErr != nil {
		s.logger.Printf("settlement: delete listing %d for record %s failed: %v", *rec.ListingID, rec.ID, deleteErr)
	}

	if remaining == 0 {
		return nil
	}

	newID, err := s.gw.CreateListing(ctx, gateway.ListingDraft{
		ReleaseID:       rec.ReleaseID,
		PriceCents:      rec.PriceCents,
		Currency:        rec.Currency,
		Condition:       rec.Condition,
		SleeveCondition: rec.SleeveCondition,
		Comments:        rec.Comments,
		Location:        rec.Location,
		Quantity:        remaining,
	})
	if err != nil {
		if deleteErr == nil {
			return fmt.Errorf("%w: listing %d deleted but relist failed for record %s: %v",
				domain.ErrCriticalInvariant, *rec.ListingID, rec.ID, err)
		}
		s.logger.Printf("settlement: relist for record %s failed, original listing %d still present: %v", rec.ID, *rec.ListingID, err)
		return nil
	}

	return s.records.SetListingID(ctx, tx, rec.ID, &newID)
}

func (s *Service) mark(ctx context.Context, ev *domain.WebhookEvent, status domain.WebhookEventStatus, msg string) {
	if ev == nil {
		return
	}
	if err := s.events.MarkStatus(ctx, ev.ID, status, msg); err != nil {
		s.logger.Printf("settlement: mark event %s %s failed: %v", ev.ID, status, err)
	}
}
