package domain

import "time"

// Cart is the single per-user cart. It is created lazily on first access and
// cleared (items deleted, row kept) after successful settlement.
type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	CreatedAt time.Time  `json:"createdAt"`
	Items     []CartItem `json:"items"`
}

// CartItem is unique per (cart, record). Record carries the live mirrored
// record when the cart was loaded with details.
type CartItem struct {
	ID        string    `json:"id"`
	CartID    string    `json:"cartId"`
	RecordID  string    `json:"recordId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
	Record    *Record   `json:"record,omitempty"`
}
