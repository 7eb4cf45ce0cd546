package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/quoteforge/quoteforge/internal/quote/model"
)

func TestQuoteStatus_valid(t *testing.T) {
	for _, s := range []model.QuoteStatus{
		model.StatusDraft, model.StatusValidated, model.StatusPriced,
		model.StatusPendingApproval, model.StatusApproved, model.StatusRejected,
		model.StatusFinalized, model.StatusSent, model.StatusExpired,
		model.StatusCancelled, model.StatusRevised,
	} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}

	if model.QuoteStatus("shipped").Valid() {
		t.Error("unknown status must not validate")
	}
}

func TestQuoteStatus_terminal(t *testing.T) {
	if !model.StatusSent.Terminal() || !model.StatusCancelled.Terminal() {
		t.Error("sent and cancelled are terminal")
	}
	if model.StatusExpired.Terminal() {
		t.Error("expired is not terminal: it accepts revise_requested")
	}
	if model.StatusDraft.Terminal() {
		t.Error("draft is not terminal")
	}
}

func TestQuote_line(t *testing.T) {
	q := &model.Quote{
		Lines: []model.LineItem{
			{ProductID: "sku-100", Quantity: 3, UnitPrice: 24.50},
			{ProductID: "sku-200", Quantity: 1, UnitPrice: 99},
		},
	}

	l := q.Line("sku-200")
	if l == nil || l.Quantity != 1 {
		t.Errorf("Line(sku-200) = %+v", l)
	}
	if q.Line("sku-999") != nil {
		t.Error("Line on missing product must return nil")
	}

	// Line returns a pointer into the quote's own slice.
	l.Quantity = 5
	if q.Lines[1].Quantity != 5 {
		t.Error("Line must alias the underlying slice")
	}
}

func TestSnapshot_deterministicEncoding(t *testing.T) {
	q := &model.Quote{
		ID:          uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"),
		QuoteNumber: "Q-2026-0001",
		CustomerID:  "cust_81hx",
		Status:      model.StatusPriced,
		Version:     3,
		Lines:       []model.LineItem{{ProductID: "sku-100", Quantity: 3, UnitPrice: 24.50}},
	}

	a, err := json.Marshal(q.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(q.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Error("snapshot encoding must be byte-identical across calls")
	}

	// Timestamps are excluded: the snapshot binds business state only.
	if string(a) != `{"id":"550e8400-e29b-41d4-a716-446655440000","quote_number":"Q-2026-0001","customer_id":"cust_81hx","status":"priced","version":3,"lines":[{"product_id":"sku-100","quantity":3,"unit_price":24.5}]}` {
		t.Errorf("unexpected snapshot encoding: %s", a)
	}
}

func TestCreateRequest_validate(t *testing.T) {
	tests := []struct {
		name    string
		req     model.CreateRequest
		wantErr bool
	}{
		{
			name: "valid",
			req: model.CreateRequest{
				CustomerID: "cust_81hx",
				Lines:      []model.LineItem{{ProductID: "sku-100", Quantity: 1, UnitPrice: 5}},
			},
		},
		{
			name: "valid without lines",
			req:  model.CreateRequest{CustomerID: "cust_81hx"},
		},
		{
			name:    "missing customer",
			req:     model.CreateRequest{CustomerID: "  "},
			wantErr: true,
		},
		{
			name: "duplicate product",
			req: model.CreateRequest{
				CustomerID: "cust_81hx",
				Lines: []model.LineItem{
					{ProductID: "sku-100", Quantity: 1, UnitPrice: 5},
					{ProductID: "sku-100", Quantity: 2, UnitPrice: 5},
				},
			},
			wantErr: true,
		},
		{
			name: "non-positive quantity",
			req: model.CreateRequest{
				CustomerID: "cust_81hx",
				Lines:      []model.LineItem{{ProductID: "sku-100", Quantity: 0, UnitPrice: 5}},
			},
			wantErr: true,
		},
		{
			name: "empty product id",
			req: model.CreateRequest{
				CustomerID: "cust_81hx",
				Lines:      []model.LineItem{{Quantity: 1, UnitPrice: 5}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var vErr *model.ErrValidation
				if !errors.As(err, &vErr) {
					t.Errorf("expected *ErrValidation, got %T", err)
				}
			}
		})
	}
}
