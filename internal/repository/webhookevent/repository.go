package webhookevent

import (
	"context"

	"vinylshop/internal/domain"
)

// Repository is the append-only settlement event log. Rows are never updated
// except for their processing status.
type Repository interface {
	// Append records an inbound event with status "received". A redelivery
	// of the same provider event id returns the existing row.
	Append(ctx context.Context, providerEventID, eventType string, payload []byte) (*domain.WebhookEvent, error)

	// MarkStatus finalizes the row's processing status and stamps
	// processed_at.
	MarkStatus(ctx context.Context, id string, status domain.WebhookEventStatus, errMsg string) error
}
