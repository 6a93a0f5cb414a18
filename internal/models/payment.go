package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the outcome reported by the payment provider.
type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// Payment records one provider event applied to an invoice. Rows are
// append-only and form the audit trail of money movements; they are never
// updated after creation.
type Payment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	OrganizationID uint          `gorm:"index;not null" json:"organization_id"`
	Organization   *Organization `gorm:"foreignKey:OrganizationID" json:"-"`

	InvoiceID uint     `gorm:"index;not null" json:"invoice_id"`
	Invoice   *Invoice `gorm:"foreignKey:InvoiceID" json:"-"`

	Amount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency string          `gorm:"size:3;not null" json:"currency"`
	Status   PaymentStatus   `gorm:"size:20;not null" json:"status"`
	Provider string          `gorm:"size:50;not null" json:"provider"`

	// ExternalID is the provider's event identifier, the idempotency key for
	// webhook redelivery. The unique index backstops concurrent deliveries.
	ExternalID string `gorm:"size:255;not null;uniqueIndex" json:"external_id"`
}
