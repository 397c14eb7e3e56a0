package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type PricedLine struct {
	Item        CartItem        `json:"item"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// PricedCart is a cart priced against the catalog at one instant.
type PricedCart struct {
	Cart  *Cart           `json:"cart"`
	Lines []PricedLine    `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

// IsEmpty reports whether nothing in the cart would be charged. Lines
// zeroed through the item management form do not count.
func (p *PricedCart) IsEmpty() bool {
	for _, line := range p.Lines {
		if line.Item.Quantity > 0 {
			return false
		}
	}
	return true
}

// Quantities maps product id to quantity for the priced lines.
func (p *PricedCart) Quantities() map[int64]int {
	out := make(map[int64]int, len(p.Lines))
	for _, line := range p.Lines {
		out[line.Item.ProductID] += line.Item.Quantity
	}
	return out
}

// PriceCart computes total = sum(price * quantity) over the active items.
// An empty cart totals to zero. Every active item must have a product in
// products, otherwise the cart cannot be priced.
func PriceCart(cart *Cart, products map[int64]*Product) (*PricedCart, error) {
	priced := &PricedCart{
		Cart:  cart,
		Lines: make([]PricedLine, 0, len(cart.Items)),
		Total: decimal.Zero,
	}

	for _, item := range cart.ActiveItems() {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("price product %d: %w", item.ProductID, ErrUnpricedProduct)
		}
		subtotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		priced.Lines = append(priced.Lines, PricedLine{
			Item:        item,
			ProductName: product.Name,
			UnitPrice:   product.Price,
			Subtotal:    subtotal,
		})
		priced.Total = priced.Total.Add(subtotal)
	}

	return priced, nil
}
