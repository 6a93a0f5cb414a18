package providers

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// OutcomeStatus is the normalized result of a provider payment event.
type OutcomeStatus string

const (
	OutcomePaid   OutcomeStatus = "PAID"
	OutcomeFailed OutcomeStatus = "FAILED"
)

// Event is a verified provider notification. ID is the provider's event
// identifier and serves as the idempotency key for redelivery.
type Event struct {
	ID   string
	Type string
	Data json.RawMessage
}

// Outcome is a provider event translated into invoicing terms. A nil outcome
// means the event type is irrelevant to invoicing and must be acknowledged
// without any state change.
type Outcome struct {
	InvoiceID uint
	Status    OutcomeStatus
	Amount    decimal.Decimal
	Currency  string
}

// PaymentLinkRequest describes the hosted checkout to create for an invoice.
type PaymentLinkRequest struct {
	InvoiceID      uint
	OrganizationID uint
	Amount         decimal.Decimal
	Currency       string
	Description    string
	Email          string
}

// CheckoutProvider abstracts the hosted payment provider. Additional
// providers implement the same three operations without touching the
// reconciliation logic.
type CheckoutProvider interface {
	Name() string

	// CreatePaymentLink returns a hosted checkout URL for the invoice.
	CreatePaymentLink(ctx context.Context, req *PaymentLinkRequest) (string, error)

	// VerifyWebhook authenticates a raw webhook payload against the shared
	// secret. It fails closed: any mismatch returns an error and no event.
	VerifyWebhook(payload []byte, signature string) (*Event, error)

	// TranslateEvent maps a verified event to a normalized outcome, or nil
	// for event types that do not concern invoicing.
	TranslateEvent(event *Event) *Outcome
}
