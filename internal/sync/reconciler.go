package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"vinylshop/internal/db"
	"vinylshop/internal/domain"
	"vinylshop/internal/gateway"
)

type Mode string

const (
	// ModeInitial wipes the mirror (retiring guarded records) and rebuilds
	// it from the full remote feed.
	ModeInitial Mode = "initial"
	// ModeDelta applies the minimal create/update/delete set in place.
	ModeDelta Mode = "delta"
)

// ErrSyncInFlight is returned when a run is requested while another is still
// executing. Runs are never queued; the caller retries later.
var ErrSyncInFlight = errors.New("reconciliation already in flight")

// RecordStore is the slice of the record repository the reconciler needs.
type RecordStore interface {
	ListForSale(ctx context.Context) ([]domain.Record, error)
	ListAll(ctx context.Context) ([]domain.Record, error)
	CreateBatch(ctx context.Context, q db.Querier, records []domain.Record) (int, error)
	Update(ctx context.Context, q db.Querier, rec domain.Record) error
	Retire(ctx context.Context, q db.Querier, id string) error
	Delete(ctx context.Context, q db.Querier, id string) error
}

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Result aggregates one reconciliation run.
type Result struct {
	Created        int  `json:"created"`
	Updated        int  `json:"updated"`
	Deleted        int  `json:"deleted"`
	SkippedGuarded int  `json:"skippedGuarded"`
	MappingErrors  int  `json:"mappingErrors"`
	Pages          int  `json:"pages"`
	Partial        bool `json:"partial"`
}

type Config struct {
	DB      TxBeginner
	Gateway gateway.Gateway
	Records RecordStore
	Guard   *Guard
	Logger  *log.Logger

	// PageSize and PageDelay control the paginated inventory fetch. The
	// delay is the minimum gap between page requests; the remote service
	// rate-limits aggressively, so pagination is strictly sequential.
	PageSize  int
	PageDelay time.Duration
}

// Reconciler brings the local mirror in line with the remote "for sale"
// feed. Runs are single-flight: a scheduled run and a manual run must not
// overlap.
type Reconciler struct {
	db      TxBeginner
	gw      gateway.Gateway
	records RecordStore
	guard   *Guard
	logger  *log.Logger

	pageSize  int
	pageDelay time.Duration

	mu sync.Mutex
}

func New(cfg Config) *Reconciler {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.PageDelay <= 0 {
		cfg.PageDelay = 1100 * time.Millisecond
	}
	return &Reconciler{
		db:        cfg.DB,
		gw:        cfg.Gateway,
		records:   cfg.Records,
		guard:     cfg.Guard,
		logger:    cfg.Logger,
		pageSize:  cfg.PageSize,
		pageDelay: cfg.PageDelay,
	}
}

// Run executes one reconciliation pass. A failed run is abandoned entirely;
// the next run restarts from page one.
func (r *Reconciler) Run(ctx context.Context, mode Mode) (Result, error) {
	if !r.mu.TryLock() {
		return Result{}, ErrSyncInFlight
	}
	defer r.mu.Unlock()

	started := time.Now()
	r.logger.Printf("sync: %s run starting", mode)

	listings, partial, pages, err := r.fetchAll(ctx)
	if err != nil {
		return Result{}, err
	}

	current, mappingErrors := buildCurrent(listings, r.logger)

	var res Result
	switch mode {
	case ModeInitial:
		res, err = r.replaceAll(ctx, current)
	case ModeDelta:
		res, err = r.applyDelta(ctx, current)
	default:
		return Result{}, fmt.Errorf("%w: unknown sync mode %q", domain.ErrValidation, mode)
	}
	if err != nil {
		return Result{}, err
	}

	res.MappingErrors = mappingErrors
	res.Pages = pages
	res.Partial = partial
	r.logger.Printf("sync: %s run done in %s: created=%d updated=%d deleted=%d skipped_guarded=%d mapping_errors=%d partial=%t",
		mode, time.Since(started).Round(time.Millisecond), res.Created, res.Updated, res.Deleted, res.SkippedGuarded, res.MappingErrors, res.Partial)
	return res, nil
}

// fetchAll walks the paginated feed sequentially with the configured
// inter-page delay. A first-page failure is fatal; a later-page failure stops
// fetching and the run reconciles with what was gathered so far.
func (r *Reconciler) fetchAll(ctx context.Context) ([]gateway.Listing, bool, int, error) {
	var all []gateway.Listing
	page := 1
	for {
		if page > 1 {
			if err := sleepCtx(ctx, r.pageDelay); err != nil {
				return nil, false, page - 1, err
			}
		}
		p, err := r.gw.ListInventory(ctx, page, r.pageSize, gateway.ListingStatusForSale)
		if err != nil {
			if page == 1 {
				return nil, false, 0, fmt.Errorf("fetch first inventory page: %w", err)
			}
			r.logger.Printf("sync: page %d fetch failed, continuing with %d listings gathered so far: %v", page, len(all), err)
			return all, true, page - 1, nil
		}
		all = append(all, p.Listings...)
		if p.Pages == 0 || page >= p.Pages {
			return all, false, page, nil
		}
		page++
	}
}

// buildCurrent maps the feed by listing id, dropping entries that cannot be
// mirrored (missing release id or price).
func buildCurrent(listings []gateway.Listing, logger *log.Logger) (map[int64]gateway.Listing, int) {
	current := make(map[int64]gateway.Listing, len(listings))
	mappingErrors := 0
	for _, l := range listings {
		if l.ReleaseID == 0 || l.PriceCents <= 0 {
			logger.Printf("sync: listing %d unmappable (release=%d price_cents=%d), skipping", l.ID, l.ReleaseID, l.PriceCents)
			mappingErrors++
			continue
		}
		current[l.ID] = l
	}
	return current, mappingErrors
}

// applyDelta computes create/update/delete sets against the FOR_SALE mirror
// and applies all three inside one transaction: deletes first (guard checked
// fresh inside the transaction), then duplicate-safe bulk creates, then
// updates item by item.
func (r *Reconciler) applyDelta(ctx context.Context, current map[int64]gateway.Listing) (Result, error) {
	existing, err := r.records.ListForSale(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list mirror: %w", err)
	}

	existingByListing := make(map[int64]domain.Record)
	var orphans []domain.Record
	for _, rec := range existing {
		if rec.ListingID == nil {
			orphans = append(orphans, rec)
			continue
		}
		existingByListing[*rec.ListingID] = rec
	}

	unclaimed := make(map[int64]gateway.Listing)
	for id, l := range current {
		if _, ok := existingByListing[id]; !ok {
			unclaimed[id] = l
		}
	}

	var updates []domain.Record
	for _, a := range resolveOrphans(orphans, unclaimed, r.logger) {
		updates = append(updates, mergeListing(a.record, a.listing))
	}

	var creates []domain.Record
	for _, l := range unclaimed {
		creates = append(creates, recordFromListing(l))
	}

	var deletes []domain.Record
	for listingID, rec := range existingByListing {
		l, ok := current[listingID]
		if !ok {
			deletes = append(deletes, rec)
			continue
		}
		if listingChanged(rec, l) {
			updates = append(updates, mergeListing(rec, l))
		}
	}

	var res Result
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback(ctx)

	for _, rec := range deletes {
		ok, err := r.guard.CanDelete(ctx, tx, rec.ID)
		if err != nil {
			return Result{}, fmt.Errorf("guard check for record %s: %w", rec.ID, err)
		}
		if !ok {
			r.logger.Printf("sync: record %s has order history, skipping delete", rec.ID)
			res.SkippedGuarded++
			continue
		}
		if err := r.records.Delete(ctx, tx, rec.ID); err != nil {
			return Result{}, fmt.Errorf("delete record %s: %w", rec.ID, err)
		}
		res.Deleted++
	}

	created, err := r.records.CreateBatch(ctx, tx, creates)
	if err != nil {
		return Result{}, fmt.Errorf("create records: %w", err)
	}
	res.Created = created

	// One bad update must not abort the run; each update gets its own
	// savepoint so a failure rolls back only that item.
	for _, rec := range updates {
		sp, err := tx.Begin(ctx)
		if err != nil {
			return Result{}, err
		}
		if err := r.records.Update(ctx, sp, rec); err != nil {
			r.logger.Printf("sync: update record %s failed, skipping: %v", rec.ID, err)
			_ = sp.Rollback(ctx)
			continue
		}
		if err := sp.Commit(ctx); err != nil {
			return Result{}, err
		}
		res.Updated++
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, err
	}
	return res, nil
}

// replaceAll is the destructive initial import: every existing record is
// deleted (or retired when order history forbids deletion), then the full
// feed is recreated.
func (r *Reconciler) replaceAll(ctx context.Context, current map[int64]gateway.Listing) (Result, error) {
	existing, err := r.records.ListAll(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list mirror: %w", err)
	}

	creates := make([]domain.Record, 0, len(current))
	for _, l := range current {
		creates = append(creates, recordFromListing(l))
	}

	var res Result
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback(ctx)

	for _, rec := range existing {
		ok, err := r.guard.CanDelete(ctx, tx, rec.ID)
		if err != nil {
			return Result{}, fmt.Errorf("guard check for record %s: %w", rec.ID, err)
		}
		if !ok {
			if err := r.records.Retire(ctx, tx, rec.ID); err != nil {
				return Result{}, fmt.Errorf("retire record %s: %w", rec.ID, err)
			}
			res.SkippedGuarded++
			continue
		}
		if err := r.records.Delete(ctx, tx, rec.ID); err != nil {
			return Result{}, fmt.Errorf("delete record %s: %w", rec.ID, err)
		}
		res.Deleted++
	}

	created, err := r.records.CreateBatch(ctx, tx, creates)
	if err != nil {
		return Result{}, fmt.Errorf("create records: %w", err)
	}
	res.Created = created

	if err := tx.Commit(ctx); err != nil {
		return Result{}, err
	}
	return res, nil
}

func recordFromListing(l gateway.Listing) domain.Record {
	id := l.ID
	currency := l.Currency
	if currency == "" {
		currency = "USD"
	}
	return domain.Record{
		ListingID:       &id,
		ReleaseID:       l.ReleaseID,
		Artist:          l.Artist,
		Title:           l.Title,
		PriceCents:      l.PriceCents,
		Currency:        currency,
		Condition:       l.Condition,
		SleeveCondition: l.SleeveCondition,
		Comments:        l.Comments,
		Location:        l.Location,
		Quantity:        1,
		Status:          domain.StatusForSale,
		ImageURL:        l.ImageURL,
	}
}

// mergeListing overlays remote listing fields onto an existing record,
// preserving local identity, quantity and ownership.
func mergeListing(rec domain.Record, l gateway.Listing) domain.Record {
	id := l.ID
	rec.ListingID = &id
	rec.ReleaseID = l.ReleaseID
	rec.Artist = l.Artist
	rec.Title = l.Title
	rec.PriceCents = l.PriceCents
	if l.Currency != "" {
		rec.Currency = l.Currency
	}
	rec.Condition = l.Condition
	rec.SleeveCondition = l.SleeveCondition
	rec.Comments = l.Comments
	rec.Location = l.Location
	rec.Status = domain.StatusForSale
	rec.ImageURL = l.ImageURL
	return rec
}

func listingChanged(rec domain.Record, l gateway.Listing) bool {
	return rec.PriceCents != l.PriceCents ||
		rec.Condition != l.Condition ||
		rec.SleeveCondition != l.SleeveCondition ||
		rec.Comments != l.Comments ||
		rec.Location != l.Location ||
		rec.Status != domain.StatusForSale ||
		rec.ImageURL != l.ImageURL
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
