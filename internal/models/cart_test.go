package models

import "testing"

func TestCart_Find(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		{ID: "T1", Type: "ticket", Price: 500, Quantity: 1},
		{ID: "T1", Type: "merch", Price: 300, Quantity: 1},
	}}

	if got := cart.Find("T1", "merch"); got != 1 {
		t.Errorf("Find(T1, merch) = %d, want 1", got)
	}
	if got := cart.Find("T1", ""); got != 0 {
		t.Errorf("Find(T1, \"\") = %d, want 0 (type defaults to ticket)", got)
	}
	if got := cart.Find("T9", "ticket"); got != -1 {
		t.Errorf("Find(T9, ticket) = %d, want -1", got)
	}
}

func TestCart_Sanitize(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		{ID: "T1", Type: "", Price: 500, Quantity: 1},
		{ID: "T1", Type: "ticket", Price: 500, Quantity: 2},
		{ID: "", Type: "ticket", Price: 100, Quantity: 1},
		{ID: "T2", Type: "ticket", Price: -20, Quantity: 1},
		{ID: "T3", Type: "ticket", Price: 100, Quantity: 0},
	}, Total: 99999}

	cart.Sanitize()

	if len(cart.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(cart.Items))
	}
	if cart.Items[0].Quantity != 3 {
		t.Errorf("merged quantity = %d, want 3", cart.Items[0].Quantity)
	}
	if cart.Items[1].Price != 0 {
		t.Errorf("negative price = %v, want 0", cart.Items[1].Price)
	}
	if cart.Total != 1500 {
		t.Errorf("Total = %v, want 1500", cart.Total)
	}
}

func TestCart_Count(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		{ID: "T1", Type: "ticket", Quantity: 2},
		{ID: "T2", Type: "ticket", Quantity: 3},
	}}

	if got := cart.Count(); got != 5 {
		t.Errorf("Count() = %d, want 5", got)
	}
	if got := NewEmptyCart().Count(); got != 0 {
		t.Errorf("empty Count() = %d, want 0", got)
	}
}

func TestOrderCreateRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     OrderCreateRequest
		wantErr bool
	}{
		{
			name:    "valid",
			req:     OrderCreateRequest{Items: []OrderItem{{ID: "T1", Quantity: 1, Price: 500}}},
			wantErr: false,
		},
		{
			name:    "no items",
			req:     OrderCreateRequest{},
			wantErr: true,
		},
		{
			name:    "missing ticket id",
			req:     OrderCreateRequest{Items: []OrderItem{{Quantity: 1, Price: 500}}},
			wantErr: true,
		},
		{
			name:    "zero quantity",
			req:     OrderCreateRequest{Items: []OrderItem{{ID: "T1", Quantity: 0, Price: 500}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
