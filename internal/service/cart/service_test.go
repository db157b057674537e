package cart

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"

	"vinylshop/internal/db"
	"vinylshop/internal/domain"
	cartrepo "vinylshop/internal/repository/cart"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(_ context.Context) error { t.committed = true; return nil }
func (t *fakeTx) Rollback(_ context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	lastTx *fakeTx
}

func (d *fakeDB) Begin(_ context.Context) (pgx.Tx, error) {
	d.lastTx = &fakeTx{}
	return d.lastTx, nil
}

type stubCarts struct {
	userID string
	// qty holds the live cart state keyed by record id.
	qty   map[string]int
	items map[string]*cartrepo.OwnedItem
}

func newStubCarts(userID string) *stubCarts {
	return &stubCarts{
		userID: userID,
		qty:    make(map[string]int),
		items:  make(map[string]*cartrepo.OwnedItem),
	}
}

func (s *stubCarts) GetOrCreateByUser(_ context.Context, userID string) (*domain.Cart, error) {
	cart := &domain.Cart{ID: "cart-1", UserID: userID}
	for recordID, q := range s.qty {
		cart.Items = append(cart.Items, domain.CartItem{
			CartID:   cart.ID,
			RecordID: recordID,
			Quantity: q,
		})
	}
	return cart, nil
}

func (s *stubCarts) GetItemForUpdate(_ context.Context, _ db.Querier, itemID string) (*cartrepo.OwnedItem, error) {
	item, ok := s.items[itemID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func (s *stubCarts) GetItemQuantity(_ context.Context, _ db.Querier, _, recordID string) (int, error) {
	return s.qty[recordID], nil
}

func (s *stubCarts) UpsertItem(_ context.Context, _ db.Querier, _, recordID string, quantity int) error {
	s.qty[recordID] = quantity
	return nil
}

func (s *stubCarts) DeleteItemForUser(_ context.Context, itemID, userID string) (bool, error) {
	item, ok := s.items[itemID]
	if !ok || item.UserID != userID {
		return false, nil
	}
	delete(s.items, itemID)
	delete(s.qty, item.RecordID)
	return true, nil
}

type stubRecords struct {
	recs map[string]*domain.Record
}

func (s *stubRecords) GetForUpdate(_ context.Context, _ db.Querier, id string) (*domain.Record, error) {
	rec, ok := s.recs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func forSaleRecord(id string, quantity int) *domain.Record {
	return &domain.Record{
		ID:         id,
		Artist:     "Artist",
		Title:      "Title",
		PriceCents: 1500,
		Quantity:   quantity,
		Status:     domain.StatusForSale,
	}
}

func newService(carts *stubCarts, records *stubRecords) (*Service, *fakeDB) {
	dbc := &fakeDB{}
	return New(dbc, carts, records, log.New(os.Stderr, "[test] ", 0)), dbc
}

func TestAddItem_RejectsNonPositiveQuantity(t *testing.T) {
	svc, _ := newService(newStubCarts("user-1"), &stubRecords{})
	if _, err := svc.AddItem(context.Background(), "user-1", "rec-1", 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddItem_SumsWithExistingLine(t *testing.T) {
	carts := newStubCarts("user-1")
	carts.qty["rec-1"] = 1
	records := &stubRecords{recs: map[string]*domain.Record{"rec-1": forSaleRecord("rec-1", 4)}}
	svc, dbc := newService(carts, records)

	cart, err := svc.AddItem(context.Background(), "user-1", "rec-1", 2)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if carts.qty["rec-1"] != 3 {
		t.Fatalf("expected summed quantity 3, got %d", carts.qty["rec-1"])
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 3 {
		t.Fatalf("unexpected cart %+v", cart)
	}
	if !dbc.lastTx.committed {
		t.Fatalf("transaction not committed")
	}
}

func TestAddItem_RejectsExceedingStock(t *testing.T) {
	carts := newStubCarts("user-1")
	carts.qty["rec-1"] = 1
	records := &stubRecords{recs: map[string]*domain.Record{"rec-1": forSaleRecord("rec-1", 2)}}
	svc, dbc := newService(carts, records)

	if _, err := svc.AddItem(context.Background(), "user-1", "rec-1", 2); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if carts.qty["rec-1"] != 1 {
		t.Fatalf("rejected add must not change the cart")
	}
	if !dbc.lastTx.rolledBack {
		t.Fatalf("rejected add must roll back")
	}
}

func TestAddItem_RejectsNotForSale(t *testing.T) {
	rec := forSaleRecord("rec-1", 1)
	rec.Status = domain.StatusSold
	svc, _ := newService(newStubCarts("user-1"), &stubRecords{recs: map[string]*domain.Record{"rec-1": rec}})

	if _, err := svc.AddItem(context.Background(), "user-1", "rec-1", 1); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAddItem_RejectsOwnRecord(t *testing.T) {
	rec := forSaleRecord("rec-1", 1)
	owner := "user-1"
	rec.OwnerID = &owner
	svc, _ := newService(newStubCarts("user-1"), &stubRecords{recs: map[string]*domain.Record{"rec-1": rec}})

	if _, err := svc.AddItem(context.Background(), "user-1", "rec-1", 1); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateItem_RejectsZeroQuantity(t *testing.T) {
	svc, _ := newService(newStubCarts("user-1"), &stubRecords{})
	if _, err := svc.UpdateItem(context.Background(), "user-1", "item-1", 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateItem_ForeignItemLooksAbsent(t *testing.T) {
	carts := newStubCarts("user-1")
	carts.items["item-1"] = &cartrepo.OwnedItem{
		CartItem: domain.CartItem{ID: "item-1", CartID: "cart-2", RecordID: "rec-1", Quantity: 1},
		UserID:   "user-2",
	}
	svc, _ := newService(carts, &stubRecords{})

	if _, err := svc.UpdateItem(context.Background(), "user-1", "item-1", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateItem_SetsAbsoluteQuantity(t *testing.T) {
	carts := newStubCarts("user-1")
	carts.qty["rec-1"] = 1
	carts.items["item-1"] = &cartrepo.OwnedItem{
		CartItem: domain.CartItem{ID: "item-1", CartID: "cart-1", RecordID: "rec-1", Quantity: 1},
		UserID:   "user-1",
	}
	records := &stubRecords{recs: map[string]*domain.Record{"rec-1": forSaleRecord("rec-1", 5)}}
	svc, _ := newService(carts, records)

	if _, err := svc.UpdateItem(context.Background(), "user-1", "item-1", 4); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if carts.qty["rec-1"] != 4 {
		t.Fatalf("expected absolute quantity 4, got %d", carts.qty["rec-1"])
	}
}

func TestUpdateItem_RejectsExceedingStock(t *testing.T) {
	carts := newStubCarts("user-1")
	carts.items["item-1"] = &cartrepo.OwnedItem{
		CartItem: domain.CartItem{ID: "item-1", CartID: "cart-1", RecordID: "rec-1", Quantity: 1},
		UserID:   "user-1",
	}
	records := &stubRecords{recs: map[string]*domain.Record{"rec-1": forSaleRecord("rec-1", 3)}}
	svc, _ := newService(carts, records)

	if _, err := svc.UpdateItem(context.Background(), "user-1", "item-1", 5); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRemoveItem_AbsentItemIsNotAnError(t *testing.T) {
	svc, _ := newService(newStubCarts("user-1"), &stubRecords{})
	cart, err := svc.RemoveItem(context.Background(), "user-1", "item-missing")
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if cart == nil {
		t.Fatalf("current cart must be returned")
	}
}

func TestRemoveItem_DeletesOwnItem(t *testing.T) {
	carts := newStubCarts("user-1")
	carts.qty["rec-1"] = 2
	carts.items["item-1"] = &cartrepo.OwnedItem{
		CartItem: domain.CartItem{ID: "item-1", CartID: "cart-1", RecordID: "rec-1", Quantity: 2},
		UserID:   "user-1",
	}
	svc, _ := newService(carts, &stubRecords{})

	cart, err := svc.RemoveItem(context.Background(), "user-1", "item-1")
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("item not removed: %+v", cart.Items)
	}
}

func TestMergeGuestCart_SumsAndCapsAtStock(t *testing.T) {
	carts := newStubCarts("user-1")
	carts.qty["rec-1"] = 2
	records := &stubRecords{recs: map[string]*domain.Record{"rec-1": forSaleRecord("rec-1", 4)}}
	svc, dbc := newService(carts, records)

	cart, err := svc.MergeGuestCart(context.Background(), "user-1", []GuestItem{{RecordID: "rec-1", Quantity: 3}})
	if err != nil {
		t.Fatalf("MergeGuestCart: %v", err)
	}
	if carts.qty["rec-1"] != 4 {
		t.Fatalf("expected quantity capped at stock 4, got %d", carts.qty["rec-1"])
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 4 {
		t.Fatalf("unexpected cart %+v", cart)
	}
	if !dbc.lastTx.committed {
		t.Fatalf("merge transaction not committed")
	}
}

func TestMergeGuestCart_SkipsUnusableItemsAndMergesTheRest(t *testing.T) {
	owner := "user-1"
	ownRec := forSaleRecord("rec-own", 2)
	ownRec.OwnerID = &owner
	soldOut := forSaleRecord("rec-empty", 0)

	carts := newStubCarts("user-1")
	records := &stubRecords{recs: map[string]*domain.Record{
		"rec-ok":    forSaleRecord("rec-ok", 5),
		"rec-own":   ownRec,
		"rec-empty": soldOut,
	}}
	svc, _ := newService(carts, records)

	_, err := svc.MergeGuestCart(context.Background(), "user-1", []GuestItem{
		{RecordID: "rec-unknown", Quantity: 1},
		{RecordID: "rec-own", Quantity: 1},
		{RecordID: "rec-empty", Quantity: 1},
		{RecordID: "rec-zero", Quantity: 0},
		{RecordID: "rec-ok", Quantity: 2},
	})
	if err != nil {
		t.Fatalf("MergeGuestCart: %v", err)
	}
	if len(carts.qty) != 1 || carts.qty["rec-ok"] != 2 {
		t.Fatalf("only the usable item should be merged, got %+v", carts.qty)
	}
}
