// Package pdf renders invoices to PDF documents using maroto.
package pdf

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
)

// Line is one rendered invoice row.
type Line struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
}

// Invoice carries everything the renderer needs, fully resolved by the
// caller: display fields, formatted parties, line items and totals.
type Invoice struct {
	Number           string
	IssueDate        string
	DueDate          string
	Status           string
	Currency         string
	OrganizationName string
	ClientName       string
	ClientEmail      string
	ClientAddress    string
	Lines            []Line
	Subtotal         decimal.Decimal
	TaxRate          decimal.Decimal
	TaxAmount        decimal.Decimal
	Total            decimal.Decimal
	Notes            string
}

// Render produces the PDF bytes for one invoice.
func Render(inv Invoice) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(15).
		WithRightMargin(15).
		WithTopMargin(15).
		Build()

	m := maroto.New(cfg)

	m.AddRows(row.New(12).Add(
		text.NewCol(7, inv.OrganizationName, props.Text{Size: 16, Style: fontstyle.Bold}),
		text.NewCol(5, "Invoice "+inv.Number, props.Text{Size: 14, Align: align.Right}),
	))
	m.AddRows(row.New(6).Add(
		text.NewCol(7, "Bill to: "+inv.ClientName, props.Text{Size: 10}),
		text.NewCol(5, "Issued: "+inv.IssueDate, props.Text{Size: 9, Align: align.Right}),
	))
	m.AddRows(row.New(6).Add(
		text.NewCol(7, inv.ClientAddress, props.Text{Size: 9}),
		text.NewCol(5, "Due: "+inv.DueDate, props.Text{Size: 9, Align: align.Right}),
	))
	m.AddRows(row.New(8).Add(line.NewCol(12)))

	// Items table
	header := props.Text{Size: 9, Style: fontstyle.Bold}
	m.AddRows(row.New(7).Add(
		text.NewCol(6, "Description", header),
		text.NewCol(2, "Qty", headerRight()),
		text.NewCol(2, "Unit price", headerRight()),
		text.NewCol(2, "Amount", headerRight()),
	))
	for _, l := range inv.Lines {
		m.AddRows(row.New(6).Add(
			text.NewCol(6, l.Description, props.Text{Size: 9}),
			text.NewCol(2, l.Quantity.String(), cellRight()),
			text.NewCol(2, money(l.UnitPrice, inv.Currency), cellRight()),
			text.NewCol(2, money(l.Total, inv.Currency), cellRight()),
		))
	}
	m.AddRows(row.New(6).Add(line.NewCol(12)))

	m.AddRows(row.New(6).Add(
		col.New(8),
		text.NewCol(2, "Subtotal", cellRight()),
		text.NewCol(2, money(inv.Subtotal, inv.Currency), cellRight()),
	))
	m.AddRows(row.New(6).Add(
		col.New(8),
		text.NewCol(2, fmt.Sprintf("Tax (%s%%)", inv.TaxRate.String()), cellRight()),
		text.NewCol(2, money(inv.TaxAmount, inv.Currency), cellRight()),
	))
	m.AddRows(row.New(8).Add(
		col.New(8),
		text.NewCol(2, "Total", headerRight()),
		text.NewCol(2, money(inv.Total, inv.Currency), props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
	))

	if inv.Notes != "" {
		m.AddRows(row.New(14).Add(text.NewCol(12, inv.Notes, props.Text{Size: 8, Top: 6})))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate invoice pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func money(d decimal.Decimal, currency string) string {
	return d.StringFixed(2) + " " + currency
}

func headerRight() props.Text {
	return props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}
}

func cellRight() props.Text {
	return props.Text{Size: 9, Align: align.Right}
}
