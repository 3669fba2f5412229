package models

import (
	"math"
	"strings"
	"time"
)

// CheckoutState is a step in the checkout state machine
type CheckoutState string

const (
	CheckoutLoading   CheckoutState = "loading"
	CheckoutReady     CheckoutState = "ready"
	CheckoutError     CheckoutState = "error"
	CheckoutPaying    CheckoutState = "paying"
	CheckoutCompleted CheckoutState = "completed"
	CheckoutFailed    CheckoutState = "failed"
)

// CheckoutSource tells where a checkout came from
type CheckoutSource string

const (
	SourceCart   CheckoutSource = "cart"
	SourceDirect CheckoutSource = "direct"
)

// DirectCheckout is the buy-now descriptor kept in session-scoped storage.
// Numeric fields stay loosely typed until they are coerced.
type DirectCheckout struct {
	TicketID       string    `json:"ticketId"`
	Type           string    `json:"type,omitempty"`
	Name           string    `json:"name,omitempty"`
	ConcertID      string    `json:"concertId,omitempty"`
	PerformanceID  string    `json:"performanceId,omitempty"`
	Price          any       `json:"price"`
	Quantity       any       `json:"quantity"`
	Discount       any       `json:"discount,omitempty"`
	IdempotencyKey string    `json:"idempotencyKey,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (d *DirectCheckout) PriceValue() any    { return d.Price }
func (d *DirectCheckout) QuantityValue() any { return d.Quantity }

// Summary derives the display totals. Missing or malformed numbers count as 0.
func (d *DirectCheckout) Summary() CheckoutSummary {
	subtotal := ComputeTotal([]Priced{d})

	discount, ok := CoerceNumber(d.Discount)
	if !ok || discount < 0 {
		discount = 0
	}

	return CheckoutSummary{
		Subtotal:    subtotal,
		Discount:    discount,
		TotalAmount: math.Max(subtotal-discount, 0),
	}
}

// Validate checks the descriptor before an order is materialized from it
func (d *DirectCheckout) Validate() error {
	fields := make(map[string]string)

	if strings.TrimSpace(d.TicketID) == "" {
		fields["ticketId"] = "ticket id is required"
	}

	quantity, ok := CoerceNumber(d.Quantity)
	if !ok || quantity < 1 || quantity > math.MaxInt32 || quantity != math.Trunc(quantity) {
		fields["quantity"] = "quantity must be a whole number between 1 and 2147483647"
	}

	price, ok := CoerceNumber(d.Price)
	if !ok || price < 0 {
		fields["price"] = "price must be a non-negative number"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// OrderRequest converts a validated descriptor into an order creation request
func (d *DirectCheckout) OrderRequest() *OrderCreateRequest {
	quantity, _ := CoerceNumber(d.Quantity)
	return &OrderCreateRequest{
		Items: []OrderItem{{
			ID:            d.TicketID,
			Type:          NormalizeItemType(d.Type),
			Name:          d.Name,
			Quantity:      int(quantity),
			Price:         SanitizePrice(d.Price),
			ConcertID:     d.ConcertID,
			PerformanceID: d.PerformanceID,
		}},
	}
}

// CheckoutSummary holds the totals shown on the checkout page
type CheckoutSummary struct {
	Subtotal    float64 `json:"subtotal"`
	Discount    float64 `json:"discount"`
	TotalAmount float64 `json:"totalAmount"`
}

// SummaryFromOrder reports the server's total as-is
func SummaryFromOrder(order *Order) CheckoutSummary {
	return CheckoutSummary{
		Subtotal:    order.TotalAmount,
		Discount:    0,
		TotalAmount: order.TotalAmount,
	}
}

// CheckoutSession is the ephemeral view of one checkout
type CheckoutSession struct {
	State       CheckoutState   `json:"state"`
	Source      CheckoutSource  `json:"source,omitempty"`
	OrderNumber string          `json:"orderNumber,omitempty"`
	Order       *Order          `json:"order,omitempty"`
	Direct      *DirectCheckout `json:"directCheckout,omitempty"`
	Summary     CheckoutSummary `json:"summary"`
	Payment     *PaymentSession `json:"payment,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// PaymentSession is what the payment provider hands back when a payment is created.
// Exactly one of RedirectURL and FormHTML is set.
type PaymentSession struct {
	OrderNumber string `json:"orderNumber"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	FormHTML    string `json:"redirectFormHtml,omitempty"`
}

// PaymentResult is the classified outcome of a payment redirect
type PaymentResult struct {
	OrderNumber string `json:"orderNumber"`
	Success     bool   `json:"success"`
	Code        string `json:"code"`
	Message     string `json:"message"`
}

// ECPay result codes
const (
	RtnCodeSuccess = "1"
	RtnCodeFailure = "10100058"
)

// ClassifyPaymentResult maps an RtnCode to success or failure. Only "1" is success.
func ClassifyPaymentResult(orderNumber, rtnCode, rtnMsg string) PaymentResult {
	code := strings.TrimSpace(rtnCode)
	return PaymentResult{
		OrderNumber: strings.TrimSpace(orderNumber),
		Success:     code == RtnCodeSuccess,
		Code:        code,
		Message:     rtnMsg,
	}
}
