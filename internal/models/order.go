package models

import (
	"errors"
	"fmt"
	"strings"
)

// OrderStatus represents the status tag reported by the Order API
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
)

// Order is the server-authoritative record returned by the Order API.
// TotalAmount is computed upstream and is never re-derived here.
type Order struct {
	OrderNumber string      `json:"orderNumber"`
	Items       []OrderItem `json:"items"`
	TotalAmount float64     `json:"totalAmount"`
	Status      OrderStatus `json:"status"`
}

// OrderItem is a snapshot of a purchased line at the time of ordering
type OrderItem struct {
	ID            string  `json:"id"`
	Type          string  `json:"type,omitempty"`
	Name          string  `json:"name,omitempty"`
	Quantity      int     `json:"quantity"`
	Price         float64 `json:"price"`
	ConcertID     string  `json:"concertId,omitempty"`
	PerformanceID string  `json:"performanceId,omitempty"`
}

// PriceValue exposes the unit price for ComputeTotal
func (i OrderItem) PriceValue() any { return i.Price }

// QuantityValue exposes the quantity for ComputeTotal
func (i OrderItem) QuantityValue() any { return i.Quantity }

// OrderCreateRequest is the body sent to POST /orders
type OrderCreateRequest struct {
	Items []OrderItem `json:"items"`
}

// Validate validates order creation data before it is sent upstream
func (req *OrderCreateRequest) Validate() error {
	if len(req.Items) == 0 {
		return NewValidationError("items", "at least one item is required")
	}

	fields := make(map[string]string)
	for i, item := range req.Items {
		if strings.TrimSpace(item.ID) == "" {
			fields[fmt.Sprintf("items[%d].id", i)] = "ticket id is required"
		}
		if item.Quantity < 1 {
			fields[fmt.Sprintf("items[%d].quantity", i)] = "quantity must be at least 1"
		}
		if item.Price < 0 {
			fields[fmt.Sprintf("items[%d].price", i)] = "price cannot be negative"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}

	return nil
}

// OrderRequestFromCart converts cart lines to an order creation request
func OrderRequestFromCart(cart *Cart) *OrderCreateRequest {
	req := &OrderCreateRequest{Items: make([]OrderItem, 0, len(cart.Items))}
	for _, item := range cart.Items {
		req.Items = append(req.Items, OrderItem{
			ID:            item.ID,
			Type:          item.Type,
			Name:          item.Name,
			Quantity:      item.Quantity,
			Price:         item.Price,
			ConcertID:     item.ConcertID,
			PerformanceID: item.PerformanceID,
		})
	}
	return req
}

// Validate checks the fields the checkout relies on
func (o *Order) Validate() error {
	if strings.TrimSpace(o.OrderNumber) == "" {
		return errors.New("order number is required")
	}
	return validateOrderStatus(o.Status)
}

func validateOrderStatus(status OrderStatus) error {
	switch status {
	case OrderPending, OrderPaid, OrderCancelled:
		return nil
	default:
		return fmt.Errorf("invalid order status %q", status)
	}
}

// IsPending returns true if the order is awaiting payment
func (o *Order) IsPending() bool {
	return o.Status == OrderPending
}

// IsPaid returns true if the order has been paid
func (o *Order) IsPaid() bool {
	return o.Status == OrderPaid
}

// IsCancelled returns true if the order is cancelled
func (o *Order) IsCancelled() bool {
	return o.Status == OrderCancelled
}

// CanBePaid returns true if a payment may be initiated for the order
func (o *Order) CanBePaid() bool {
	return o.Status == OrderPending || o.Status == ""
}
