package models

import (
	"strings"
	"time"
)

// DefaultItemType is the category used when an item arrives without one
const DefaultItemType = "ticket"

// Cart represents a shopper's in-progress selection
type Cart struct {
	Items     []CartItem `json:"items"`
	Total     float64    `json:"total"`
	UpdatedAt time.Time  `json:"updated_at,omitempty"`
}

// CartItem represents one purchasable line in the cart
type CartItem struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Quantity      int     `json:"quantity"`
	ConcertID     string  `json:"concertId,omitempty"`
	PerformanceID string  `json:"performanceId,omitempty"`
}

// CartItemInput is the loosely typed shape accepted when adding to the cart.
// Price is coerced and never propagates NaN.
type CartItemInput struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Name          string `json:"name"`
	Price         any    `json:"price"`
	Quantity      any    `json:"quantity,omitempty"`
	ConcertID     string `json:"concertId,omitempty"`
	PerformanceID string `json:"performanceId,omitempty"`
}

func (i CartItem) PriceValue() any    { return i.Price }
func (i CartItem) QuantityValue() any { return i.Quantity }

// Subtotal returns price × quantity for the line
func (i CartItem) Subtotal() float64 {
	return LineSubtotal(i)
}

// NewEmptyCart returns the cart used when nothing is persisted yet
func NewEmptyCart() *Cart {
	return &Cart{Items: []CartItem{}, Total: 0}
}

// NormalizeItemType trims the type tag and falls back to DefaultItemType
func NormalizeItemType(itemType string) string {
	itemType = strings.TrimSpace(itemType)
	if itemType == "" {
		return DefaultItemType
	}
	return itemType
}

// Find returns the index of the line matching (id, type), or -1
func (c *Cart) Find(id, itemType string) int {
	itemType = NormalizeItemType(itemType)
	for i := range c.Items {
		if c.Items[i].ID == id && c.Items[i].Type == itemType {
			return i
		}
	}
	return -1
}

// Recalculate recomputes the derived total
func (c *Cart) Recalculate() {
	if c.Items == nil {
		c.Items = []CartItem{}
	}
	c.Total = ComputeTotal(c.Items)
}

// Count returns the number of units across all lines
func (c *Cart) Count() int {
	count := 0
	for _, item := range c.Items {
		if item.Quantity > 0 {
			count += item.Quantity
		}
	}
	return count
}

// Sanitize drops lines that violate cart invariants (missing id, non-positive quantity),
// merges duplicate (id, type) pairs and recomputes the total. It is applied to data
// read back from storage.
func (c *Cart) Sanitize() {
	cleaned := make([]CartItem, 0, len(c.Items))
	for _, item := range c.Items {
		if strings.TrimSpace(item.ID) == "" || item.Quantity <= 0 {
			continue
		}
		item.Type = NormalizeItemType(item.Type)
		item.Price = SanitizePrice(item.Price)

		merged := false
		for i := range cleaned {
			if cleaned[i].ID == item.ID && cleaned[i].Type == item.Type {
				cleaned[i].Quantity += item.Quantity
				merged = true
				break
			}
		}
		if !merged {
			cleaned = append(cleaned, item)
		}
	}
	c.Items = cleaned
	c.Recalculate()
}
