package webhookevent

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

func (r *postgresRepo) Append(ctx context.Context, providerEventID, eventType string, payload []byte) (*domain.WebhookEvent, error) {
	const insert = `
INSERT INTO webhook_events (provider_event_id, event_type, payload, status)
VALUES ($1, $2, $3, 'received')
ON CONFLICT (provider_event_id) DO NOTHING
RETURNING id::text, provider_event_id, event_type, status, created_at
`
	var ev domain.WebhookEvent
	err := r.pool.QueryRow(ctx, insert, providerEventID, eventType, payload).Scan(
		&ev.ID,
		&ev.ProviderEventID,
		&ev.EventType,
		&ev.Status,
		&ev.CreatedAt,
	)
	if err == nil {
		ev.Payload = payload
		return &ev, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Printf("webhook repo: append event=%s error=%v", providerEventID, err)
		return nil, err
	}

	// Conflict path: the provider redelivered an event we already logged.
	const get = `
SELECT id::text, provider_event_id, event_type, payload, status, error, processed_at, created_at
FROM webhook_events
WHERE provider_event_id = $1
`
	err = r.pool.QueryRow(ctx, get, providerEventID).Scan(
		&ev.ID,
		&ev.ProviderEventID,
		&ev.EventType,
		&ev.Payload,
		&ev.Status,
		&ev.Error,
		&ev.ProcessedAt,
		&ev.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r *postgresRepo) MarkStatus(ctx context.Context, id string, status domain.WebhookEventStatus, errMsg string) error {
	const query = `
UPDATE webhook_events
SET status = $1, error = $2, processed_at = now()
WHERE id = $3
`
	cmd, err := r.pool.Exec(ctx, query, status, errMsg, id)
	if err != nil {
		r.logger.Printf("webhook repo: mark id=%s status=%s error=%v", id, status, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
