package models

import "time"

// Client is an organization's customer, the recipient of invoices.
type Client struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrganizationID uint          `gorm:"index;not null" json:"organization_id"`
	Organization   *Organization `gorm:"foreignKey:OrganizationID" json:"-"`

	Name      string `gorm:"size:200;not null" json:"name"`
	Email     string `gorm:"size:255" json:"email,omitempty"`
	VATNumber string `gorm:"size:50" json:"vat_number,omitempty"`
	Address   string `gorm:"size:500" json:"address,omitempty"`
}
