package domain

import "time"

type RecordStatus string

const (
	StatusForSale RecordStatus = "FOR_SALE"
	StatusSold    RecordStatus = "SOLD"
	StatusDraft   RecordStatus = "DRAFT"
)

// Record is one sellable unit in the local mirror of the marketplace catalog.
// ListingID is the remote marketplace listing identifier; it is nil for
// records that have never been listed (or whose listing vanished) and unique
// among non-nil values. ReleaseID identifies the pressing and may repeat
// across relisted copies.
type Record struct {
	ID              string       `json:"id"`
	ListingID       *int64       `json:"listingId,omitempty"`
	ReleaseID       int64        `json:"releaseId"`
	Artist          string       `json:"artist"`
	Title           string       `json:"title"`
	PriceCents      int64        `json:"priceCents"`
	Currency        string       `json:"currency"`
	Condition       string       `json:"condition"`
	SleeveCondition string       `json:"sleeveCondition,omitempty"`
	Comments        string       `json:"comments,omitempty"`
	Location        string       `json:"location,omitempty"`
	Quantity        int          `json:"quantity"`
	Status          RecordStatus `json:"status"`
	ImageURL        string       `json:"imageUrl,omitempty"`
	OwnerID         *string      `json:"-"`
	SyncedAt        time.Time    `json:"syncedAt"`
	CreatedAt       time.Time    `json:"createdAt"`
}
