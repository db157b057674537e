package cart

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

func (r *postgresRepo) GetOrCreateByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	const insert = `
INSERT INTO carts (user_id)
VALUES ($1)
ON CONFLICT (user_id) DO NOTHING
`
	if _, err := r.pool.Exec(ctx, insert, userID); err != nil {
		r.logger.Printf("cart repo: get-or-create user_id=%s error=%v", userID, err)
		return nil, err
	}

	const cartQuery = `
SELECT id::text, user_id, created_at
FROM carts
WHERE user_id = $1
`
	var cart domain.Cart
	if err := r.pool.QueryRow(ctx, cartQuery, userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	const itemsQuery = `
SELECT ci.id::text, ci.cart_id::text, ci.record_id::text, ci.quantity, ci.created_at,
       r.id::text, r.listing_id, r.release_id, r.artist, r.title, r.price_cents, r.currency,
       r.condition, r.sleeve_condition, r.comments, r.location, r.quantity, r.status, r.image_url,
       r.owner_id, r.synced_at, r.created_at
FROM cart_items ci
JOIN records r ON r.id = ci.record_id
WHERE ci.cart_id = $1
ORDER BY ci.created_at ASC
`
	rows, err := r.pool.Query(ctx, itemsQuery, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.CartItem
		var rec domain.Record
		if err := rows.Scan(
			&item.ID,
			&item.CartID,
			&item.RecordID,
			&item.Quantity,
			&item.CreatedAt,
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
		); err != nil {
			return nil, err
		}
		item.Record = &rec
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *postgresRepo) GetItemForUpdate(ctx context.Context, q db.Querier, itemID string) (*OwnedItem, error) {
	const query = `
SELECT ci.id::text, ci.cart_id::text, ci.record_id::text, ci.quantity, ci.created_at, c.user_id
FROM cart_items ci
JOIN carts c ON c.id = ci.cart_id
WHERE ci.id = $1
FOR UPDATE OF ci
`
	var item OwnedItem
	err := q.QueryRow(ctx, query, itemID).Scan(
		&item.ID,
		&item.CartID,
		&item.RecordID,
		&item.Quantity,
		&item.CreatedAt,
		&item.UserID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *postgresRepo) GetItemQuantity(ctx context.Context, q db.Querier, cartID, recordID string) (int, error) {
	const query = `
SELECT quantity
FROM cart_items
WHERE cart_id = $1 AND record_id = $2
`
	var qty int
	err := q.QueryRow(ctx, query, cartID, recordID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return qty, nil
}

func (r *postgresRepo) UpsertItem(ctx context.Context, q db.Querier, cartID, recordID string, quantity int) error {
	const query = `
INSERT INTO cart_items (cart_id, record_id, quantity)
VALUES ($1, $2, $3)
ON CONFLICT (cart_id, record_id) DO UPDATE SET quantity = EXCLUDED.quantity
`
	_, err := q.Exec(ctx, query, cartID, recordID, quantity)
	return err
}

func (r *postgresRepo) DeleteItemForUser(ctx context.Context, itemID, userID string) (bool, error) {
	const query = `
DELETE FROM cart_items
WHERE id = $1
  AND cart_id IN (SELECT id FROM carts WHERE user_id = $2)
`
	cmd, err := r.pool.Exec(ctx, query, itemID, userID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *postgresRepo) ClearByUser(ctx context.Context, q db.Querier, userID string) error {
	const query = `
DELETE FROM cart_items
WHERE cart_id IN (SELECT id FROM carts WHERE user_id = $1)
`
	_, err := q.Exec(ctx, query, userID)
	return err
}
