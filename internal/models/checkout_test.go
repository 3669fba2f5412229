package models

import (
	"errors"
	"testing"
)

func TestDirectCheckout_Summary(t *testing.T) {
	tests := []struct {
		name   string
		direct DirectCheckout
		want   CheckoutSummary
	}{
		{
			name:   "price and quantity",
			direct: DirectCheckout{TicketID: "T1", Price: 1200.0, Quantity: 2.0},
			want:   CheckoutSummary{Subtotal: 2400, Discount: 0, TotalAmount: 2400},
		},
		{
			name:   "discount applied",
			direct: DirectCheckout{TicketID: "T1", Price: 1200.0, Quantity: 2.0, Discount: 400.0},
			want:   CheckoutSummary{Subtotal: 2400, Discount: 400, TotalAmount: 2000},
		},
		{
			name:   "missing numbers fall back to zero",
			direct: DirectCheckout{TicketID: "T1"},
			want:   CheckoutSummary{},
		},
		{
			name:   "malformed discount ignored",
			direct: DirectCheckout{TicketID: "T1", Price: 100.0, Quantity: 1.0, Discount: "lots"},
			want:   CheckoutSummary{Subtotal: 100, Discount: 0, TotalAmount: 100},
		},
		{
			name:   "discount never drives total negative",
			direct: DirectCheckout{TicketID: "T1", Price: 100.0, Quantity: 1.0, Discount: 500.0},
			want:   CheckoutSummary{Subtotal: 100, Discount: 500, TotalAmount: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.direct.Summary(); got != tt.want {
				t.Errorf("Summary() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDirectCheckout_Validate(t *testing.T) {
	valid := DirectCheckout{TicketID: "T1", Price: 500.0, Quantity: 1.0}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	missingID := DirectCheckout{Price: 500.0, Quantity: 1.0}
	err := missingID.Validate()
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Validate() error = %v, want *ValidationError", err)
	}
	if _, ok := vErr.Fields["ticketId"]; !ok {
		t.Errorf("Validate() fields = %v, want ticketId", vErr.Fields)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ValidationError should match ErrInvalidInput")
	}

	badPrice := DirectCheckout{TicketID: "T1", Price: "free", Quantity: 1.5}
	err = badPrice.Validate()
	if !errors.As(err, &vErr) || len(vErr.Fields) != 2 {
		t.Errorf("Validate() = %v, want price and quantity errors", err)
	}

	for _, quantity := range []any{"1e20", 3e9, float64(1 << 31)} {
		huge := DirectCheckout{TicketID: "T1", Price: 100, Quantity: quantity}
		err = huge.Validate()
		if !errors.As(err, &vErr) {
			t.Fatalf("Validate(quantity=%v) = %v, want *ValidationError", quantity, err)
		}
		if _, ok := vErr.Fields["quantity"]; !ok {
			t.Errorf("Validate(quantity=%v) fields = %v, want quantity", quantity, vErr.Fields)
		}
	}

	largest := DirectCheckout{TicketID: "T1", Price: 100, Quantity: "2147483647"}
	if err := largest.Validate(); err != nil {
		t.Errorf("Validate() at the int32 ceiling: %v", err)
	}
}

func TestDirectCheckout_OrderRequest(t *testing.T) {
	direct := DirectCheckout{TicketID: "T1", Name: "Stalls A", Price: "800", Quantity: 3.0, ConcertID: "C1"}

	req := direct.OrderRequest()

	if len(req.Items) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(req.Items))
	}
	item := req.Items[0]
	if item.ID != "T1" || item.Type != DefaultItemType || item.Quantity != 3 || item.Price != 800 || item.ConcertID != "C1" {
		t.Errorf("OrderRequest() item = %+v", item)
	}
}

func TestClassifyPaymentResult(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"1", true},
		{" 1 ", true},
		{"0", false},
		{"10100058", false},
		{"", false},
		{"01", false},
	}

	for _, tt := range tests {
		got := ClassifyPaymentResult("ORD-1", tt.code, "msg")
		if got.Success != tt.want {
			t.Errorf("ClassifyPaymentResult(%q).Success = %v, want %v", tt.code, got.Success, tt.want)
		}
		if got.OrderNumber != "ORD-1" {
			t.Errorf("OrderNumber = %q, want ORD-1", got.OrderNumber)
		}
	}
}

func TestSummaryFromOrder_UsesServerTotal(t *testing.T) {
	order := &Order{
		OrderNumber: "ORD-1",
		Items:       []OrderItem{{ID: "T1", Quantity: 2, Price: 1000}},
		TotalAmount: 2400,
		Status:      OrderPending,
	}

	if got := SummaryFromOrder(order).TotalAmount; got != 2400 {
		t.Errorf("TotalAmount = %v, want 2400", got)
	}
}
