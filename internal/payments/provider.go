package payments

import "context"

// SessionLine is one purchasable line in a checkout session. RecordID rides
// along as line metadata so the settlement webhook can link each paid line
// back to the mirrored record without any heuristic matching.
type SessionLine struct {
	RecordID   string
	Artist     string
	Title      string
	PriceCents int64
	Quantity   int
}

type SessionParams struct {
	UserID     string
	Currency   string
	Lines      []SessionLine
	SuccessURL string
	CancelURL  string
}

type Session struct {
	ID  string
	URL string
}

// Provider is the payment-processor boundary. Only session creation is
// outbound; confirmation arrives through the signed webhook.
type Provider interface {
	CreateSession(ctx context.Context, params SessionParams) (*Session, error)
}
