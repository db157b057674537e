package payments

import (
	"encoding/json"
	"fmt"
	"strings"

	"vinylshop/internal/domain"
)

// EventTypeCheckoutCompleted is the only event type settlement acts on.
const EventTypeCheckoutCompleted = "checkout.session.completed"

// EventLine is one paid line item. RecordID comes from the line metadata set
// at session creation; an empty RecordID is a hard settlement error, never
// resolved heuristically.
type EventLine struct {
	RecordID string
	Quantity int
}

// Event is a parsed payment-confirmation webhook.
type Event struct {
	ID          string
	Type        string
	SessionID   string
	UserID      string
	Email       string
	AmountCents int64
	Currency    string
	Lines       []EventLine
}

type eventPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string            `json:"id"`
			CustomerEmail string            `json:"customer_email"`
			AmountTotal   int64             `json:"amount_total"`
			Currency      string            `json:"currency"`
			Metadata      map[string]string `json:"metadata"`
			LineItems     []struct {
				Quantity int               `json:"quantity"`
				Metadata map[string]string `json:"metadata"`
			} `json:"line_items"`
		} `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes a raw webhook body. Shape errors are validation errors;
// a missing record id on a line is deliberately not an error here, so the
// settlement state machine can log the event before rejecting it.
func ParseEvent(payload []byte) (*Event, error) {
	var raw eventPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode event: %v", domain.ErrValidation, err)
	}
	if raw.ID == "" || raw.Type == "" || raw.Data.Object.ID == "" {
		return nil, fmt.Errorf("%w: event missing id, type or session id", domain.ErrValidation)
	}

	ev := &Event{
		ID:          raw.ID,
		Type:        raw.Type,
		SessionID:   raw.Data.Object.ID,
		UserID:      raw.Data.Object.Metadata["user_id"],
		Email:       raw.Data.Object.CustomerEmail,
		AmountCents: raw.Data.Object.AmountTotal,
		Currency:    strings.ToUpper(raw.Data.Object.Currency),
	}
	for _, li := range raw.Data.Object.LineItems {
		ev.Lines = append(ev.Lines, EventLine{
			RecordID: li.Metadata["record_id"],
			Quantity: li.Quantity,
		})
	}
	return ev, nil
}
