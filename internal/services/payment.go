package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/fakturo/fakturo/internal/models"
	"github.com/fakturo/fakturo/internal/providers"
)

// PaymentService creates hosted checkout links and reconciles verified
// provider events against invoices.
type PaymentService struct {
	db       *gorm.DB
	provider providers.CheckoutProvider
}

func NewPaymentService(db *gorm.DB, provider providers.CheckoutProvider) *PaymentService {
	return &PaymentService{db: db, provider: provider}
}

// CreatePaymentLink asks the provider for a hosted checkout URL covering the
// invoice's total. The provider call runs outside any database transaction.
func (s *PaymentService) CreatePaymentLink(ctx context.Context, orgID, invoiceID uint) (string, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", invoiceID, orgID).
		Preload("Client").
		First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}

	req := &providers.PaymentLinkRequest{
		InvoiceID:      inv.ID,
		OrganizationID: inv.OrganizationID,
		Amount:         inv.Total,
		Currency:       inv.Currency,
		Description:    "Invoice " + inv.Number,
	}
	if inv.Client != nil {
		req.Email = inv.Client.Email
	}
	url, err := s.provider.CreatePaymentLink(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	return url, nil
}

// HandleWebhook verifies, translates and applies one provider notification.
//
// Invalid signatures are rejected before anything is touched. Irrelevant
// event types, redelivered events and events for unknown invoices are all
// successful no-ops so the provider stops redelivering. A completed payment
// inserts the Payment row and applies the PAID transition in one transaction;
// a failed payment only records the attempt.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.VerifyWebhook(payload, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	outcome := s.provider.TranslateEvent(event)
	if outcome == nil {
		return nil
	}

	// Idempotency: one Payment row per distinct external event id.
	applied, err := s.paymentExists(ctx, event.ID)
	if err != nil {
		return err
	}
	if applied {
		log.Debug().Str("event", event.ID).Msg("webhook event already processed")
		return nil
	}

	var inv models.Invoice
	if err := s.db.WithContext(ctx).First(&inv, outcome.InvoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn().Str("event", event.ID).Uint("invoice", outcome.InvoiceID).Msg("webhook for unknown invoice")
			return nil
		}
		return err
	}

	if !outcome.Amount.Equal(inv.Total) || outcome.Currency != inv.Currency {
		// Record what the provider reported; the discrepancy is surfaced for
		// manual review.
		log.Warn().
			Str("event", event.ID).
			Str("invoice_number", inv.Number).
			Str("expected", inv.Total.String()+" "+inv.Currency).
			Str("reported", outcome.Amount.String()+" "+outcome.Currency).
			Msg("payment amount mismatch")
	}

	payment := models.Payment{
		OrganizationID: inv.OrganizationID,
		InvoiceID:      inv.ID,
		Amount:         outcome.Amount,
		Currency:       outcome.Currency,
		Provider:       s.provider.Name(),
		ExternalID:     event.ID,
	}

	switch outcome.Status {
	case providers.OutcomePaid:
		payment.Status = models.PaymentStatusCompleted
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&payment).Error; err != nil {
				return err
			}
			if inv.Status != models.InvoiceStatusPaid {
				now := time.Now()
				return tx.Model(&models.Invoice{}).
					Where("id = ? AND status <> ?", inv.ID, models.InvoiceStatusPaid).
					Updates(map[string]interface{}{"status": models.InvoiceStatusPaid, "paid_at": now}).Error
			}
			return nil
		})
	case providers.OutcomeFailed:
		payment.Status = models.PaymentStatusFailed
		err = s.db.WithContext(ctx).Create(&payment).Error
	default:
		return nil
	}
	if err != nil {
		// A concurrent delivery of the same event may have won the unique
		// index on external_id; that is a successful no-op, not an error.
		if applied, checkErr := s.paymentExists(ctx, event.ID); checkErr == nil && applied {
			return nil
		}
		return err
	}

	log.Info().
		Str("event", event.ID).
		Str("invoice_number", inv.Number).
		Str("status", string(payment.Status)).
		Msg("payment reconciled")
	return nil
}

func (s *PaymentService) paymentExists(ctx context.Context, externalID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("external_id = ?", externalID).
		Count(&count).Error
	return count > 0, err
}

// ListPayments returns the append-only payment ledger for one invoice,
// scoped to the organization.
func (s *PaymentService) ListPayments(ctx context.Context, orgID, invoiceID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND invoice_id = ?", orgID, invoiceID).
		Order("id asc").
		Find(&payments).Error
	return payments, err
}
