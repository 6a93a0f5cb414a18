package models

import "time"

// InvoiceSequence holds the last allocated invoice number for one
// organization. The row is incremented inside the invoice-creation
// transaction so concurrent requests serialize on it and can never be
// handed the same number.
type InvoiceSequence struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrganizationID uint  `gorm:"uniqueIndex;not null" json:"organization_id"`
	LastValue      int64 `gorm:"not null;default:0" json:"last_value"`
}
