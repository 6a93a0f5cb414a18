package services

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name      string
		items     []LineInput
		taxRate   string
		subtotal  string
		taxAmount string
		total     string
	}{
		{
			name: "two items 10 percent",
			items: []LineInput{
				{Description: "a", Quantity: d("2"), UnitPrice: d("50.00")},
			},
			taxRate:   "10",
			subtotal:  "100.00",
			taxAmount: "10.00",
			total:     "110.00",
		},
		{
			name: "zero tax",
			items: []LineInput{
				{Description: "a", Quantity: d("1"), UnitPrice: d("19.99")},
				{Description: "b", Quantity: d("3"), UnitPrice: d("5.00")},
			},
			taxRate:   "0",
			subtotal:  "34.99",
			taxAmount: "0.00",
			total:     "34.99",
		},
		{
			name: "fractional quantity rounds per line",
			items: []LineInput{
				{Description: "hours", Quantity: d("1.5"), UnitPrice: d("33.33")},
			},
			taxRate:   "20",
			subtotal:  "50.00", // 49.995 rounded
			taxAmount: "10.00",
			total:     "60.00",
		},
		{
			name: "repeating tax fraction",
			items: []LineInput{
				{Description: "a", Quantity: d("1"), UnitPrice: d("0.10")},
			},
			taxRate:   "5.5",
			subtotal:  "0.10",
			taxAmount: "0.01", // 0.0055 rounded
			total:     "0.11",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotals(tt.items, d(tt.taxRate))
			if !got.Subtotal.Equal(d(tt.subtotal)) {
				t.Errorf("Subtotal = %s, want %s", got.Subtotal, tt.subtotal)
			}
			if !got.TaxAmount.Equal(d(tt.taxAmount)) {
				t.Errorf("TaxAmount = %s, want %s", got.TaxAmount, tt.taxAmount)
			}
			if !got.Total.Equal(d(tt.total)) {
				t.Errorf("Total = %s, want %s", got.Total, tt.total)
			}
			// The invariant must hold exactly, not within epsilon.
			if !got.Total.Equal(got.Subtotal.Add(got.TaxAmount)) {
				t.Errorf("Total %s != Subtotal %s + TaxAmount %s", got.Total, got.Subtotal, got.TaxAmount)
			}
		})
	}
}

func TestComputeTotalsSubtotalIsSumOfLines(t *testing.T) {
	items := []LineInput{
		{Description: "a", Quantity: d("2"), UnitPrice: d("10.01")},
		{Description: "b", Quantity: d("4"), UnitPrice: d("2.49")},
		{Description: "c", Quantity: d("0.25"), UnitPrice: d("100.00")},
	}
	got := ComputeTotals(items, d("21"))

	sum := decimal.Zero
	for _, line := range got.Lines {
		sum = sum.Add(line)
	}
	if !got.Subtotal.Equal(sum) {
		t.Errorf("Subtotal = %s, want sum of lines %s", got.Subtotal, sum)
	}
}

func TestValidateLines(t *testing.T) {
	valid := []LineInput{{Description: "x", Quantity: d("1"), UnitPrice: d("10")}}

	tests := []struct {
		name    string
		items   []LineInput
		taxRate string
		field   string
	}{
		{"no items", nil, "0", "items"},
		{"missing description", []LineInput{{Quantity: d("1"), UnitPrice: d("1")}}, "0", "items.0.description"},
		{"zero quantity", []LineInput{{Description: "x", Quantity: d("0"), UnitPrice: d("1")}}, "0", "items.0.quantity"},
		{"negative quantity", []LineInput{{Description: "x", Quantity: d("-1"), UnitPrice: d("1")}}, "0", "items.0.quantity"},
		{"negative price", []LineInput{{Description: "x", Quantity: d("1"), UnitPrice: d("-0.01")}}, "0", "items.0.unit_price"},
		{"tax rate above 100", valid, "101", "tax_rate"},
		{"negative tax rate", valid, "-1", "tax_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLines(tt.items, d(tt.taxRate))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if _, ok := err.Fields[tt.field]; !ok {
				t.Errorf("expected violation on %q, got %v", tt.field, err.Fields)
			}
		})
	}

	if err := ValidateLines(valid, d("20")); err != nil {
		t.Errorf("valid input rejected: %v", err.Fields)
	}
}
