package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fakturo/fakturo/internal/models"
)

type InvoiceService struct {
	db *gorm.DB
}

func NewInvoiceService(db *gorm.DB) *InvoiceService {
	return &InvoiceService{db: db}
}

// CreateInvoiceInput is the validated request to create (or preview) an
// invoice. A nil TaxRate or empty Currency falls back to the organization's
// defaults.
type CreateInvoiceInput struct {
	ClientID  uint
	IssueDate time.Time
	DueDate   time.Time
	Currency  string
	TaxRate   *decimal.Decimal
	Notes     string
	Items     []LineInput
}

// resolve loads the organization defaults and validates the input. It returns
// the effective tax rate and currency alongside the computed totals.
func (s *InvoiceService) resolve(ctx context.Context, orgID uint, in CreateInvoiceInput) (*models.Organization, decimal.Decimal, string, Totals, error) {
	var org models.Organization
	if err := s.db.WithContext(ctx).First(&org, orgID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, decimal.Zero, "", Totals{}, ErrNotFound
		}
		return nil, decimal.Zero, "", Totals{}, err
	}

	taxRate := org.DefaultTaxRate
	if in.TaxRate != nil {
		taxRate = *in.TaxRate
	}
	currency := in.Currency
	if currency == "" {
		currency = org.Currency
	}

	if err := s.fillFromProducts(ctx, orgID, in.Items); err != nil {
		return nil, decimal.Zero, "", Totals{}, err
	}
	if verr := ValidateLines(in.Items, taxRate); verr != nil {
		return nil, decimal.Zero, "", Totals{}, verr
	}

	// The client must exist under this organization; a foreign client id is
	// indistinguishable from a missing one.
	var clientCount int64
	if err := s.db.WithContext(ctx).Model(&models.Client{}).
		Where("id = ? AND organization_id = ?", in.ClientID, orgID).
		Count(&clientCount).Error; err != nil {
		return nil, decimal.Zero, "", Totals{}, err
	}
	if clientCount == 0 {
		return nil, decimal.Zero, "", Totals{}, fmt.Errorf("client %d: %w", in.ClientID, ErrNotFound)
	}

	return &org, taxRate, currency, ComputeTotals(in.Items, taxRate), nil
}

// fillFromProducts snapshots catalog data into lines that reference a
// product but carry no description of their own. The copy is what freezes
// the invoice against later product-price edits.
func (s *InvoiceService) fillFromProducts(ctx context.Context, orgID uint, items []LineInput) error {
	ids := make([]uint, 0, len(items))
	for _, it := range items {
		if it.ProductID != nil {
			ids = append(ids, *it.ProductID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	var products []models.Product
	if err := s.db.WithContext(ctx).
		Where("id IN ? AND organization_id = ?", ids, orgID).
		Find(&products).Error; err != nil {
		return err
	}
	byID := make(map[uint]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for i := range items {
		if items[i].ProductID == nil {
			continue
		}
		p, ok := byID[*items[i].ProductID]
		if !ok {
			return fmt.Errorf("product %d: %w", *items[i].ProductID, ErrNotFound)
		}
		if items[i].Description == "" {
			items[i].Description = p.Name
			items[i].UnitPrice = p.UnitPrice
		}
	}
	return nil
}

// Preview runs the exact same validation and arithmetic as Create without
// persisting anything. No invoice number is consumed.
func (s *InvoiceService) Preview(ctx context.Context, orgID uint, in CreateInvoiceInput) (Totals, string, error) {
	_, _, currency, totals, err := s.resolve(ctx, orgID, in)
	if err != nil {
		return Totals{}, "", err
	}
	return totals, currency, nil
}

// Create computes totals, allocates the next sequential number and persists
// the invoice with its items, all in one transaction. Totals are frozen at
// creation time.
func (s *InvoiceService) Create(ctx context.Context, orgID uint, in CreateInvoiceInput) (*models.Invoice, error) {
	org, taxRate, currency, totals, err := s.resolve(ctx, orgID, in)
	if err != nil {
		return nil, err
	}

	inv := models.Invoice{
		OrganizationID: orgID,
		ClientID:       in.ClientID,
		IssueDate:      in.IssueDate,
		DueDate:        in.DueDate,
		Status:         models.InvoiceStatusDraft,
		Currency:       currency,
		TaxRate:        taxRate,
		Subtotal:       totals.Subtotal,
		TaxAmount:      totals.TaxAmount,
		Total:          totals.Total,
		Notes:          in.Notes,
	}
	if inv.Notes == "" {
		inv.Notes = org.Terms
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := nextInvoiceNumber(tx, orgID, org.InvoicePrefix)
		if err != nil {
			return err
		}
		inv.Number = number
		if err := tx.Create(&inv).Error; err != nil {
			return err
		}
		items := make([]models.InvoiceItem, len(in.Items))
		for i, it := range in.Items {
			items[i] = models.InvoiceItem{
				InvoiceID:   inv.ID,
				ProductID:   it.ProductID,
				Description: it.Description,
				Quantity:    it.Quantity,
				UnitPrice:   it.UnitPrice,
				Total:       totals.Lines[i],
				Position:    i,
			}
		}
		return tx.Create(&items).Error
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Preload("Items").Preload("Client").First(&inv, inv.ID).Error; err != nil {
		return nil, err
	}
	log.Info().Uint("org", orgID).Str("number", inv.Number).Str("total", inv.Total.String()).Msg("invoice created")
	return &inv, nil
}

// nextInvoiceNumber increments the organization's sequence row and formats
// the display number. The UPDATE is the first write of the enclosing
// transaction, so concurrent creators for the same tenant serialize here and
// numbers come out distinct and contiguous.
func nextInvoiceNumber(tx *gorm.DB, orgID uint, prefix string) (string, error) {
	if prefix == "" {
		prefix = "INV"
	}
	res := tx.Model(&models.InvoiceSequence{}).
		Where("organization_id = ?", orgID).
		UpdateColumn("last_value", gorm.Expr("last_value + 1"))
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		if err := tx.Create(&models.InvoiceSequence{OrganizationID: orgID, LastValue: 1}).Error; err != nil {
			// Lost the race to create the tenant's row: increment it instead.
			res = tx.Model(&models.InvoiceSequence{}).
				Where("organization_id = ?", orgID).
				UpdateColumn("last_value", gorm.Expr("last_value + 1"))
			if res.Error != nil {
				return "", res.Error
			}
			if res.RowsAffected == 0 {
				return "", fmt.Errorf("invoice sequence for organization %d unavailable", orgID)
			}
		}
	}
	var seq models.InvoiceSequence
	if err := tx.Where("organization_id = ?", orgID).First(&seq).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%04d", prefix, seq.LastValue), nil
}

// List returns the organization's invoices, newest first.
func (s *InvoiceService) List(ctx context.Context, orgID uint) ([]models.Invoice, error) {
	var invs []models.Invoice
	err := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Preload("Client").Preload("Items").
		Order("id desc").
		Find(&invs).Error
	return invs, err
}

// Get loads one invoice with its client and items, scoped to the
// organization.
func (s *InvoiceService) Get(ctx context.Context, orgID, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", id, orgID).
		Preload("Organization").Preload("Client").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// MarkSent transitions a DRAFT invoice to SENT after a successful delivery.
// Invoices already past DRAFT are left untouched.
func (s *InvoiceService) MarkSent(ctx context.Context, orgID, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ? AND organization_id = ? AND status = ?", id, orgID, models.InvoiceStatusDraft).
		Update("status", models.InvoiceStatusSent)
	return res.Error
}

// MarkOverdue flips SENT invoices whose due date has passed to OVERDUE,
// across all tenants. It is invoked by an external scheduler (the
// -mark-overdue run mode), never by request handlers.
func (s *InvoiceService) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("status = ? AND due_date < ?", models.InvoiceStatusSent, now).
		Update("status", models.InvoiceStatusOverdue)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		log.Info().Int64("count", res.RowsAffected).Msg("invoices marked overdue")
	}
	return res.RowsAffected, nil
}
