package scanner

import (
	"errors"
	"testing"

	"github.com/tabsplit/tabsplit/internal/models"
)

func TestParseExtraction(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
		check   func(t *testing.T, ex *Extraction)
	}{
		{
			name: "plain json",
			text: `{"merchant_name": "Whole Foods", "receipt_date": "2026-01-13",
				"items": [{"name": "Apples", "price": 5.99, "taxable": true}],
				"confidence": "high"}`,
			check: func(t *testing.T, ex *Extraction) {
				if ex.MerchantName != "Whole Foods" {
					t.Errorf("merchant = %q", ex.MerchantName)
				}
				if ex.ReceiptDate != "2026-01-13" {
					t.Errorf("date = %q", ex.ReceiptDate)
				}
				if len(ex.Items) != 1 || ex.Items[0].Price != 5.99 {
					t.Errorf("items = %+v", ex.Items)
				}
			},
		},
		{
			name: "markdown fenced json",
			text: "```json\n{\"merchant_name\": \"Target\", \"receipt_date\": null, \"items\": [{\"name\": \"Soap\", \"price\": 3.25}], \"confidence\": \"high\"}\n```",
			check: func(t *testing.T, ex *Extraction) {
				if ex.MerchantName != "Target" || ex.ReceiptDate != "" {
					t.Errorf("unexpected extraction: %+v", ex)
				}
			},
		},
		{
			name: "taxable defaults to true when omitted",
			text: `{"merchant_name": "Corner Store", "items": [{"name": "Gum", "price": 1.00}], "confidence": "high"}`,
			check: func(t *testing.T, ex *Extraction) {
				if !ex.Items[0].Taxable {
					t.Error("expected taxable to default to true")
				}
			},
		},
		{
			name:    "not json",
			text:    "I could not read this receipt, sorry!",
			wantErr: true,
		},
		{
			name:    "missing merchant",
			text:    `{"merchant_name": "  ", "items": [{"name": "Gum", "price": 1.00}], "confidence": "high"}`,
			wantErr: true,
		},
		{
			name:    "no items",
			text:    `{"merchant_name": "Target", "items": [], "confidence": "high"}`,
			wantErr: true,
		},
		{
			name:    "low confidence",
			text:    `{"merchant_name": "Target", "items": [{"name": "Soap", "price": 3.25}], "confidence": "Low"}`,
			wantErr: true,
		},
		{
			name:    "negative price",
			text:    `{"merchant_name": "Target", "items": [{"name": "Coupon", "price": -1.00}], "confidence": "high"}`,
			wantErr: true,
		},
		{
			name:    "item missing price",
			text:    `{"merchant_name": "Target", "items": [{"name": "Soap"}], "confidence": "high"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, err := ParseExtraction(tt.text)
			if tt.wantErr {
				if !errors.Is(err, models.ErrValidation) {
					t.Fatalf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseExtraction failed: %v", err)
			}
			if tt.check != nil {
				tt.check(t, ex)
			}
		})
	}
}

func TestReceiptName(t *testing.T) {
	tests := []struct {
		merchant string
		date     string
		want     string
	}{
		{"Whole Foods", "2026-01-13", "Whole Foods - Jan 13, 2026"},
		{"Target", "", "Target"},
		{"Target", "not-a-date", "Target"},
		{"  Trader Joe's  ", "2025-12-01", "Trader Joe's - Dec 1, 2025"},
	}
	for _, tt := range tests {
		if got := ReceiptName(tt.merchant, tt.date); got != tt.want {
			t.Errorf("ReceiptName(%q, %q) = %q, want %q", tt.merchant, tt.date, got, tt.want)
		}
	}
}
