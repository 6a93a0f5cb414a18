package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Organization is the tenant boundary. Every client, product, invoice and
// payment belongs to exactly one organization, and all queries are scoped
// by organization id.
type Organization struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name string `gorm:"size:200;not null" json:"name"`

	// Invoicing defaults applied when a request omits them.
	InvoicePrefix  string          `gorm:"size:20;not null;default:'INV'" json:"invoice_prefix"`
	Currency       string          `gorm:"size:3;not null;default:'USD'" json:"currency"`
	DefaultTaxRate decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"default_tax_rate"`
	Terms          string          `gorm:"type:text" json:"terms,omitempty"`
}
