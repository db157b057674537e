package domain

import "time"

type WebhookEventStatus string

const (
	WebhookReceived  WebhookEventStatus = "received"
	WebhookProcessed WebhookEventStatus = "processed"
	WebhookSkipped   WebhookEventStatus = "skipped"
	WebhookFailed    WebhookEventStatus = "failed"
)

// WebhookEvent is one appended row per inbound payment event, kept for audit
// and idempotency diagnosis. The primary idempotency mechanism is the unique
// checkout session id on Order, not this log.
type WebhookEvent struct {
	ID              string             `json:"id"`
	ProviderEventID string             `json:"providerEventId"`
	EventType       string             `json:"eventType"`
	Payload         []byte             `json:"-"`
	Status          WebhookEventStatus `json:"status"`
	Error           string             `json:"error,omitempty"`
	ProcessedAt     *time.Time         `json:"processedAt,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
}
