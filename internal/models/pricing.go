package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Priced is anything that carries a unit price and a quantity, possibly malformed.
type Priced interface {
	PriceValue() any
	QuantityValue() any
}

// RawLine is a loosely typed price/quantity pair as decoded from JSON payloads.
type RawLine struct {
	Price    any `json:"price"`
	Quantity any `json:"quantity"`
}

func (l RawLine) PriceValue() any    { return l.Price }
func (l RawLine) QuantityValue() any { return l.Quantity }

// CoerceNumber converts v to a finite float64.
// Strings are trimmed and parsed; booleans, nil and anything non-finite are rejected.
func CoerceNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case decimal.Decimal:
		f = n.InexactFloat64()
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// SanitizePrice returns a usable unit price: non-numeric or negative input becomes 0.
func SanitizePrice(v any) float64 {
	f, ok := CoerceNumber(v)
	if !ok || f < 0 {
		return 0
	}
	return f
}

// LineSubtotal returns price × quantity for one line, or 0 if either side is not a finite number.
func LineSubtotal(item Priced) float64 {
	return lineSubtotal(item).InexactFloat64()
}

func lineSubtotal(item Priced) decimal.Decimal {
	price, ok := CoerceNumber(item.PriceValue())
	if !ok {
		return decimal.Zero
	}
	quantity, ok := CoerceNumber(item.QuantityValue())
	if !ok {
		return decimal.Zero
	}
	return decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(quantity))
}

// ComputeTotal sums price × quantity over items. A line whose price or quantity
// cannot be coerced to a finite number contributes 0; the function never fails.
func ComputeTotal[T Priced](items []T) float64 {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(lineSubtotal(item))
	}
	return total.InexactFloat64()
}
