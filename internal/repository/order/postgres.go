package order

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vinylshop/internal/db"
	"vinylshop/internal/domain"
)

const uniqueViolation = "23505"

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

func (r *postgresRepo) GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	const q = `
SELECT id::text, checkout_session_id, user_id, email, amount_cents, currency, status, created_at
FROM orders
WHERE checkout_session_id = $1
`
	var o domain.Order
	err := r.pool.QueryRow(ctx, q, sessionID).Scan(
		&o.ID,
		&o.CheckoutSessionID,
		&o.UserID,
		&o.Email,
		&o.AmountCents,
		&o.Currency,
		&o.Status,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("order repo: get session=%s error=%v", sessionID, err)
		return nil, err
	}

	const itemsQuery = `
SELECT id::text, order_id::text, record_id::text, artist, title, price_cents, quantity, created_at
FROM order_items
WHERE order_id = $1
ORDER BY created_at ASC
`
	rows, err := r.pool.Query(ctx, itemsQuery, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.RecordID,
			&item.Artist,
			&item.Title,
			&item.PriceCents,
			&item.Quantity,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *postgresRepo) Create(ctx context.Context, q db.Querier, in CreateOrderInput) (*domain.Order, error) {
	const query = `
INSERT INTO orders (checkout_session_id, user_id, email, amount_cents, currency, status)
VALUES ($1, $2, $3, $4, $5, 'PAID')
RETURNING id::text, created_at
`
	o := domain.Order{
		CheckoutSessionID: in.CheckoutSessionID,
		UserID:            in.UserID,
		Email:             in.Email,
		AmountCents:       in.AmountCents,
		Currency:          in.Currency,
		Status:            domain.OrderStatusPaid,
	}
	err := q.QueryRow(ctx, query, in.CheckoutSessionID, in.UserID, in.Email, in.AmountCents, in.Currency).
		Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrConflict
		}
		r.logger.Printf("order repo: create session=%s error=%v", in.CheckoutSessionID, err)
		return nil, err
	}
	return &o, nil
}

func (r *postgresRepo) AddItem(ctx context.Context, q db.Querier, in CreateItemInput) (*domain.OrderItem, error) {
	const query = `
INSERT INTO order_items (order_id, record_id, artist, title, price_cents, quantity)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id::text, created_at
`
	item := domain.OrderItem{
		OrderID:    in.OrderID,
		RecordID:   in.RecordID,
		Artist:     in.Artist,
		Title:      in.Title,
		PriceCents: in.PriceCents,
		Quantity:   in.Quantity,
	}
	err := q.QueryRow(ctx, query, in.OrderID, in.RecordID, in.Artist, in.Title, in.PriceCents, in.Quantity).
		Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		r.logger.Printf("order repo: add item order=%s record=%s error=%v", in.OrderID, in.RecordID, err)
		return nil, err
	}
	return &item, nil
}

func (r *postgresRepo) HasItemsForRecord(ctx context.Context, q db.Querier, recordID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM order_items WHERE record_id = $1)`
	var exists bool
	if err := q.QueryRow(ctx, query, recordID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
