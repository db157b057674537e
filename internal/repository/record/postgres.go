package record

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vinylshop/internal/db"
	"vinylshop/internal/domain"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

const recordColumns = `id::text, listing_id, release_id, artist, title, price_cents, currency, condition, sleeve_condition, comments, location, quantity, status, image_url, owner_id, synced_at, created_at`

func scanRecord(row pgx.Row) (*domain.Record, error) {
	var rec domain.Record
	err := row.Scan(
		&rec.ID,
		&rec.ListingID,
		&rec.ReleaseID,
		&rec.Artist,
		&rec.Title,
		&rec.PriceCents,
		&rec.Currency,
		&rec.Condition,
		&rec.SleeveCondition,
		&rec.Comments,
		&rec.Location,
		&rec.Quantity,
		&rec.Status,
		&rec.ImageURL,
		&rec.OwnerID,
		&rec.SyncedAt,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Record, error) {
	const q = `SELECT ` + recordColumns + ` FROM records WHERE id = $1`
	rec, err := scanRecord(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("record repo: get id=%s error=%v", id, err)
		return nil, err
	}
	return rec, nil
}

func (r *postgresRepo) GetForUpdate(ctx context.Context, q db.Querier, id string) (*domain.Record, error) {
	const query = `SELECT ` + recordColumns + ` FROM records WHERE id = $1 FOR UPDATE`
	rec, err := scanRecord(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (r *postgresRepo) ListForSale(ctx context.Context) ([]domain.Record, error) {
	const q = `SELECT ` + recordColumns + ` FROM records WHERE status = 'FOR_SALE' ORDER BY created_at ASC`
	return r.list(ctx, q)
}

func (r *postgresRepo) ListAll(ctx context.Context) ([]domain.Record, error) {
	const q = `SELECT ` + recordColumns + ` FROM records ORDER BY created_at ASC`
	return r.list(ctx, q)
}

func (r *postgresRepo) list(ctx context.Context, query string) ([]domain.Record, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		r.logger.Printf("record repo: list error=%v", err)
		return nil, err
	}
	defer rows.Close()

	var result []domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		r.logger.Printf("record repo: list rows error=%v", err)
		return nil, err
	}
	return result, nil
}

// CreateBatch inserts records, skipping any whose listing id is already
// present. Returns the number actually inserted.
func (r *postgresRepo) CreateBatch(ctx context.Context, q db.Querier, records []domain.Record) (int, error) {
	const query = `
INSERT INTO records (listing_id, release_id, artist, title, price_cents, currency, condition, sleeve_condition, comments, location, quantity, status, image_url, synced_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
ON CONFLICT (listing_id) DO NOTHING
`
	inserted := 0
	for _, rec := range records {
		cmd, err := q.Exec(ctx, query,
			rec.ListingID,
			rec.ReleaseID,
			rec.Artist,
			rec.Title,
			rec.PriceCents,
			rec.Currency,
			rec.Condition,
			rec.SleeveCondition,
			rec.Comments,
			rec.Location,
			rec.Quantity,
			rec.Status,
			rec.ImageURL,
		)
		if err != nil {
			r.logger.Printf("record repo: create listing_id=%v error=%v", rec.ListingID, err)
			return inserted, err
		}
		inserted += int(cmd.RowsAffected())
	}
	return inserted, nil
}

func (r *postgresRepo) Update(ctx context.Context, q db.Querier, rec domain.Record) error {
	const query = `
UPDATE records
SET listing_id = $1,
    release_id = $2,
    artist = $3,
    title = $4,
    price_cents = $5,
    currency = $6,
    condition = $7,
    sleeve_condition = $8,
    comments = $9,
    location = $10,
    status = $11,
    image_url = $12,
    synced_at = now()
WHERE id = $13
`
	cmd, err := q.Exec(ctx, query,
		rec.ListingID,
		rec.ReleaseID,
		rec.Artist,
		rec.Title,
		rec.PriceCents,
		rec.Currency,
		rec.Condition,
		rec.SleeveCondition,
		rec.Comments,
		rec.Location,
		rec.Status,
		rec.ImageURL,
		rec.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) UpdateInventory(ctx context.Context, q db.Querier, id string, quantity int, status domain.RecordStatus) error {
	const query = `UPDATE records SET quantity = $1, status = $2 WHERE id = $3`
	cmd, err := q.Exec(ctx, query, quantity, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) SetListingID(ctx context.Context, q db.Querier, id string, listingID *int64) error {
	const query = `UPDATE records SET listing_id = $1, synced_at = now() WHERE id = $2`
	cmd, err := q.Exec(ctx, query, listingID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Retire transitions a record with order history out of the live catalog
// instead of deleting it: status DRAFT, zero quantity, listing unlinked.
func (r *postgresRepo) Retire(ctx context.Context, q db.Querier, id string) error {
	const query = `UPDATE records SET status = 'DRAFT', quantity = 0, listing_id = NULL, synced_at = now() WHERE id = $1`
	cmd, err := q.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) Delete(ctx context.Context, q db.Querier, id string) error {
	const query = `DELETE FROM records WHERE id = $1`
	cmd, err := q.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
