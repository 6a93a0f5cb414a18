package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fakturo/fakturo/internal/validation"
)

var hundred = decimal.NewFromInt(100)

// LineInput is one invoice line as submitted by the caller.
type LineInput struct {
	ProductID   *uint
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Totals is the result of the invoice arithmetic. All amounts are rounded to
// two decimal places, and Total == Subtotal + TaxAmount holds exactly.
type Totals struct {
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
	Lines     []decimal.Decimal // per-line totals, same order as the input
}

// ValidateLines checks the invoice inputs before any arithmetic runs:
// at least one line, strictly positive quantities, non-negative unit prices,
// tax rate within [0, 100].
func ValidateLines(items []LineInput, taxRate decimal.Decimal) *ValidationError {
	v := validation.Violations{}
	if len(items) == 0 {
		v["items"] = "required"
	}
	for i, it := range items {
		validation.Required(fmt.Sprintf("items.%d.description", i), it.Description, v)
		validation.PositiveDecimal(fmt.Sprintf("items.%d.quantity", i), it.Quantity, v)
		validation.NonNegativeDecimal(fmt.Sprintf("items.%d.unit_price", i), it.UnitPrice, v)
	}
	validation.RangeDecimal("tax_rate", taxRate, decimal.Zero, hundred, v)
	if v.Empty() {
		return nil
	}
	return &ValidationError{Fields: v}
}

// ComputeTotals evaluates subtotal, tax amount and grand total in exact
// decimal arithmetic. Each line total is quantity * unit price rounded to
// cents; the tax amount is subtotal * taxRate / 100 rounded to cents. The
// same function backs both preview and persistence, so a previewed total
// always matches the saved one.
func ComputeTotals(items []LineInput, taxRate decimal.Decimal) Totals {
	lines := make([]decimal.Decimal, len(items))
	subtotal := decimal.Zero
	for i, it := range items {
		lines[i] = it.Quantity.Mul(it.UnitPrice).Round(2)
		subtotal = subtotal.Add(lines[i])
	}
	taxAmount := subtotal.Mul(taxRate).Div(hundred).Round(2)
	return Totals{
		Subtotal:  subtotal,
		TaxAmount: taxAmount,
		Total:     subtotal.Add(taxAmount),
		Lines:     lines,
	}
}
