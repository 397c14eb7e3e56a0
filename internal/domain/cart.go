package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxLineQuantity caps the quantity of a single cart line.
const MaxLineQuantity = 99

// Cart is the mutable per-user bag of line items. A user has at most one
// cart with CheckedOut == false at a time.
type Cart struct {
	ID         uuid.UUID  `json:"id"`
	UserID     int64      `json:"user_id"`
	CheckedOut bool       `json:"checked_out"`
	Items      []CartItem `json:"items"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// CartItem never carries a price; it is always priced from the live catalog.
type CartItem struct {
	ID        uuid.UUID `json:"id"`
	CartID    uuid.UUID `json:"cart_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Active    bool      `json:"active"`
	AddedAt   time.Time `json:"added_at"`
}

// ActiveItems returns the line items that take part in pricing.
func (c *Cart) ActiveItems() []CartItem {
	items := make([]CartItem, 0, len(c.Items))
	for _, item := range c.Items {
		if item.Active {
			items = append(items, item)
		}
	}
	return items
}

// ProductIDs returns the distinct product ids of the active items.
func (c *Cart) ProductIDs() []int64 {
	seen := make(map[int64]struct{}, len(c.Items))
	ids := make([]int64, 0, len(c.Items))
	for _, item := range c.ActiveItems() {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}
