package gateway

import "context"

// ListingStatusForSale is the remote status filter for live listings.
const ListingStatusForSale = "For Sale"

// Listing is one remote marketplace listing as returned by the inventory
// feed. Prices arrive as decimal strings and are normalized to cents.
type Listing struct {
	ID              int64
	ReleaseID       int64
	Artist          string
	Title           string
	PriceCents      int64
	Currency        string
	Condition       string
	SleeveCondition string
	Comments        string
	Location        string
	Status          string
	ImageURL        string
}

// ListingDraft is the payload for creating a replacement listing. The remote
// marketplace has no partial-quantity update, so quantity changes are always
// expressed as delete + recreate.
type ListingDraft struct {
	ReleaseID       int64
	PriceCents      int64
	Currency        string
	Condition       string
	SleeveCondition string
	Comments        string
	Location        string
	Quantity        int
}

// Page is one page of the inventory feed.
type Page struct {
	Listings []Listing
	Page     int
	Pages    int
	Total    int
}

// Gateway is the remote marketplace boundary. Implementations must be safe
// for concurrent use; rate-limit pacing between pages is the caller's
// responsibility.
type Gateway interface {
	ListInventory(ctx context.Context, page, perPage int, status string) (*Page, error)
	DeleteListing(ctx context.Context, id int64) error
	CreateListing(ctx context.Context, draft ListingDraft) (int64, error)
}
