package domain

import "time"

const OrderStatusPaid = "PAID"

// Order is created at most once per checkout session; CheckoutSessionID is
// the idempotency key, enforced by a unique constraint.
type Order struct {
	ID                string      `json:"id"`
	CheckoutSessionID string      `json:"checkoutSessionId"`
	UserID            string      `json:"userId"`
	Email             string      `json:"email,omitempty"`
	AmountCents       int64       `json:"amountCents"`
	Currency          string      `json:"currency"`
	Status            string      `json:"status"`
	CreatedAt         time.Time   `json:"createdAt"`
	Items             []OrderItem `json:"items,omitempty"`
}

// OrderItem is an immutable snapshot of the purchased record taken at
// settlement time. It is never edited after creation, regardless of later
// mutations to the mirrored record it references.
type OrderItem struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"orderId"`
	RecordID   string    `json:"recordId"`
	Artist     string    `json:"artist"`
	Title      string    `json:"title"`
	PriceCents int64     `json:"priceCents"`
	Quantity   int       `json:"quantity"`
	CreatedAt  time.Time `json:"createdAt"`
}
