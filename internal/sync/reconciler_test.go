package sync

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"vinylshop/internal/db"
	"vinylshop/internal/domain"
	"vinylshop/internal/gateway"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Begin(_ context.Context) (pgx.Tx, error) { return &fakeTx{}, nil }
func (t *fakeTx) Commit(_ context.Context) error          { t.committed = true; return nil }
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

type stubRecords struct {
	forSale []domain.Record
	all     []domain.Record

	created []domain.Record
	updated []domain.Record
	deleted []string
	retired []string

	updateErrFor map[string]error
}

func (s *stubRecords) ListForSale(_ context.Context) ([]domain.Record, error) { return s.forSale, nil }
func (s *stubRecords) ListAll(_ context.Context) ([]domain.Record, error)     { return s.all, nil }

func (s *stubRecords) CreateBatch(_ context.Context, _ db.Querier, records []domain.Record) (int, error) {
	s.created = append(s.created, records...)
	return len(records), nil
}

func (s *stubRecords) Update(_ context.Context, _ db.Querier, rec domain.Record) error {
	if err := s.updateErrFor[rec.ID]; err != nil {
		return err
	}
	s.updated = append(s.updated, rec)
	return nil
}

func (s *stubRecords) Retire(_ context.Context, _ db.Querier, id string) error {
	s.retired = append(s.retired, id)
	return nil
}

func (s *stubRecords) Delete(_ context.Context, _ db.Querier, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type stubOrders struct {
	referenced map[string]bool
}

func (s *stubOrders) HasItemsForRecord(_ context.Context, _ db.Querier, recordID string) (bool, error) {
	return s.referenced[recordID], nil
}

type fakeGateway struct {
	pages    [][]gateway.Listing
	failPage int
}

func (g *fakeGateway) ListInventory(_ context.Context, page, _ int, _ string) (*gateway.Page, error) {
	if g.failPage != 0 && page == g.failPage {
		return nil, errors.New("rate limited")
	}
	var listings []gateway.Listing
	if page-1 < len(g.pages) {
		listings = g.pages[page-1]
	}
	return &gateway.Page{Listings: listings, Page: page, Pages: len(g.pages)}, nil
}

func (g *fakeGateway) DeleteListing(_ context.Context, _ int64) error { return nil }

func (g *fakeGateway) CreateListing(_ context.Context, _ gateway.ListingDraft) (int64, error) {
	return 0, errors.New("not used")
}

func testLogger() *log.Logger { return log.New(os.Stderr, "[test] ", 0) }

func newTestReconciler(gw gateway.Gateway, records *stubRecords, orders *stubOrders) (*Reconciler, *fakeDB) {
	dbc := &fakeDB{}
	r := New(Config{
		DB:        dbc,
		Gateway:   gw,
		Records:   records,
		Guard:     NewGuard(orders),
		Logger:    testLogger(),
		PageSize:  100,
		PageDelay: time.Millisecond,
	})
	return r, dbc
}

func listing(id, releaseID, priceCents int64) gateway.Listing {
	return gateway.Listing{
		ID:         id,
		ReleaseID:  releaseID,
		Artist:     "Artist",
		Title:      "Title",
		PriceCents: priceCents,
		Condition:  "VG+",
		Status:     gateway.ListingStatusForSale,
	}
}

func mirrored(id string, listingID int64, releaseID int64) domain.Record {
	rec := domain.Record{
		ID:         id,
		ReleaseID:  releaseID,
		Artist:     "Artist",
		Title:      "Title",
		PriceCents: 1000,
		Condition:  "VG+",
		Quantity:   1,
		Status:     domain.StatusForSale,
	}
	if listingID != 0 {
		rec.ListingID = &listingID
	}
	return rec
}

func TestRun_CreatesFromEmptyMirror(t *testing.T) {
	records := &stubRecords{}
	orders := &stubOrders{}
	gw := &fakeGateway{pages: [][]gateway.Listing{{listing(1, 100, 1000)}}}

	r, dbc := newTestReconciler(gw, records, orders)
	res, err := r.Run(context.Background(), ModeDelta)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Created != 1 || res.Updated != 0 || res.Deleted != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(records.created) != 1 || *records.created[0].ListingID != 1 {
		t.Fatalf("unexpected creates %+v", records.created)
	}
	if records.created[0].Quantity != 1 || records.created[0].Status != domain.StatusForSale {
		t.Fatalf("unexpected created record %+v", records.created[0])
	}
	if !dbc.lastTx.committed {
		t.Fatalf("transaction not committed")
	}
}

func TestRun_DeletesAbsentAndSkipsGuarded(t *testing.T) {
	records := &stubRecords{forSale: []domain.Record{
		mirrored("rec-a", 10, 100),
		mirrored("rec-b", 11, 101),
	}}
	orders := &stubOrders{referenced: map[string]bool{"rec-b": true}}
	gw := &fakeGateway{pages: [][]gateway.Listing{{}}}

	r, _ := newTestReconciler(gw, records, orders)
	res, err := r.Run(context.Background(), ModeDelta)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Deleted != 1 || res.SkippedGuarded != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(records.deleted) != 1 || records.deleted[0] != "rec-a" {
		t.Fatalf("unexpected deletes %v", records.deleted)
	}
	if len(records.updated) != 0 {
		t.Fatalf("guarded record must be left untouched, got updates %+v", records.updated)
	}
}

func TestRun_UpdatesChangedListing(t *testing.T) {
	records := &stubRecords{forSale: []domain.Record{mirrored("rec-a", 10, 100)}}
	orders := &stubOrders{}
	gw := &fakeGateway{pages: [][]gateway.Listing{{listing(10, 100, 1200)}}}

	r, _ := newTestReconciler(gw, records, orders)
	res, err := r.Run(context.Background(), ModeDelta)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Updated != 1 || res.Created != 0 || res.Deleted != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if records.updated[0].PriceCents != 1200 {
		t.Fatalf("price not updated: %+v", records.updated[0])
	}
}

func TestRun_UnchangedListingNotTouched(t *testing.T) {
	records := &stubRecords{forSale: []domain.Record{mirrored("rec-a", 10, 100)}}
	orders := &stubOrders{}
	gw := &fakeGateway{pages: [][]gateway.Listing{{listing(10, 100, 1000)}}}

	r, _ := newTestReconciler(gw, records, orders)
	res, err := r.Run(context.Background(), ModeDelta)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Created+res.Updated+res.Deleted != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRun_AdoptsRelistedListingForOrphan(t *testing.T) {
	records := &stubRecords{forSale: []domain.Record{mirrored("rec-a", 0, 555)}}
	orders := &stubOrders{}
	gw := &fakeGateway{pages: [][]gateway.Listing{{listing(99, 555, 1000)}}}

	r, _ := newTestReconciler(gw, records, orders)
	res, err := r.Run(context.Background(), ModeDelta)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Created != 0 || res.Updated != 1 {
		t.Fatalf("adoption should update, not create: %+v", res)
	}
	if records.updated[0].ListingID == nil || *records.updated[0].ListingID != 99 {
		t.Fatalf("listing id not adopted: %+v", records.updated[0])
	}
}

func TestRun_MappingErrorsCounted(t *testing.T) {
	records := &stubRecords{}
	orders := &stubOrders{}
	gw := &fakeGateway{pages: [][]gateway.Listing{{
		{ID: 1, ReleaseID: 0, PriceCents: 1000},
		{ID: 2, ReleaseID: 200, PriceCents: 0},
		listing(3, 300, 1500),
	}}}

	r, _ := newTestReconciler(gw, records, orders)
	res, err := r.Run(context.Background(), ModeDelta)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.MappingErrors != 2 || res.Created != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRun_FirstPageFailureAborts(t *testing.T) {
	records := &stubRecords{forSale: []domain.Record{mirrored("rec-a", 10, 100)}}
	orders := &stubOrders{}
	gw := &fakeGateway{pages: [][]gateway.Listing{{listing(10, 100, 1000)}}, failPage: 1}

	r, _ := newTestReconciler(gw, records, orders)
	if _, err := r.Run(context.Background(), ModeDelta); err == nil {
		t.Fatalf("expected first-page failure to abort the run")
	}
	if len(records.deleted)+len(records.created)+len(records.updated) != 0 {
		t.Fatalf("aborted run must not touch the mirror")
	}
}

func TestRun_LaterPageFailureReconcilesPartial(t *testing.T) {
	records := &stubRecords{}
	orders := &stubOrders{}
	gw := &fakeGateway{
		pages:    [][]gateway.Listing{{listing(1, 100, 1000)}, {listing(2, 200, 1000)}},
		failPage: 2,
	}

	r, _ := newTestReconciler(gw, records, orders)
	res, err := r.Run(context.Background(), ModeDelta)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Partial || res.Created != 1 || res.Pages != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRun_PartialFeedDoesNotDeleteUnseen(t *testing.T) {
	// A record absent from a partially fetched feed may simply live on a
	// page that failed; the delta still deletes it only if it is absent
	// from what was gathered, which is the documented policy.
	records := &stubRecords{forSale: []domain.Record{mirrored("rec-a", 1, 100)}}
	orders := &stubOrders{}
	gw := &fakeGateway{
		pages:    [][]gateway.Listing{{listing(1, 100, 1000)}, {listing(2, 200, 1000)}},
		failPage: 2,
	}

	r, _ := newTestReconciler(gw, records, orders)
	res, err := r.Run(context.Background(), ModeDelta)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Deleted != 0 {
		t.Fatalf("rec-a present in gathered pages must survive: %+v", res)
	}
}

func TestRun_InitialReplacesAllRetiringGuarded(t *testing.T) {
	records := &stubRecords{all: []domain.Record{
		mirrored("rec-a", 10, 100),
		mirrored("rec-b", 11, 101),
	}}
	orders := &stubOrders{referenced: map[string]bool{"rec-b": true}}
	gw := &fakeGateway{pages: [][]gateway.Listing{{listing(20, 300, 2500)}}}

	r, _ := newTestReconciler(gw, records, orders)
	res, err := r.Run(context.Background(), ModeInitial)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Deleted != 1 || res.SkippedGuarded != 1 || res.Created != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(records.retired) != 1 || records.retired[0] != "rec-b" {
		t.Fatalf("guarded record must be retired, got %v", records.retired)
	}
}

func TestRun_BadUpdateDoesNotAbortRun(t *testing.T) {
	records := &stubRecords{
		forSale: []domain.Record{
			mirrored("rec-a", 10, 100),
			mirrored("rec-b", 11, 101),
		},
		updateErrFor: map[string]error{"rec-a": errors.New("constraint")},
	}
	orders := &stubOrders{}
	gw := &fakeGateway{pages: [][]gateway.Listing{{
		listing(10, 100, 1200),
		listing(11, 101, 1300),
	}}}

	r, dbc := newTestReconciler(gw, records, orders)
	res, err := r.Run(context.Background(), ModeDelta)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Updated != 1 {
		t.Fatalf("one update should survive, got %+v", res)
	}
	if !dbc.lastTx.committed {
		t.Fatalf("run should commit despite a failed item update")
	}
}

type blockingGateway struct {
	entered chan struct{}
	release chan struct{}
}

func (g *blockingGateway) ListInventory(_ context.Context, page, _ int, _ string) (*gateway.Page, error) {
	g.entered <- struct{}{}
	<-g.release
	return &gateway.Page{Page: page, Pages: 1}, nil
}

func (g *blockingGateway) DeleteListing(_ context.Context, _ int64) error { return nil }
func (g *blockingGateway) CreateListing(_ context.Context, _ gateway.ListingDraft) (int64, error) {
	return 0, nil
}

func TestRun_SingleFlight(t *testing.T) {
	gw := &blockingGateway{entered: make(chan struct{}), release: make(chan struct{})}
	r, _ := newTestReconciler(gw, &stubRecords{}, &stubOrders{})

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background(), ModeDelta)
		done <- err
	}()

	<-gw.entered
	if _, err := r.Run(context.Background(), ModeDelta); !errors.Is(err, ErrSyncInFlight) {
		t.Fatalf("expected ErrSyncInFlight, got %v", err)
	}
	close(gw.release)
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}
}
