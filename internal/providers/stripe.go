package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeProvider implements CheckoutProvider on top of Stripe hosted
// Checkout sessions and signed webhook events.
type StripeProvider struct {
	webhookSecret string
	appBaseURL    string
}

func NewStripeProvider(secretKey, webhookSecret, appBaseURL string) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{
		webhookSecret: webhookSecret,
		appBaseURL:    strings.TrimRight(appBaseURL, "/"),
	}
}

func (p *StripeProvider) Name() string { return "stripe" }

func (p *StripeProvider) CreatePaymentLink(ctx context.Context, req *PaymentLinkRequest) (string, error) {
	meta := map[string]string{
		"invoice_id":      strconv.FormatUint(uint64(req.InvoiceID), 10),
		"organization_id": strconv.FormatUint(uint64(req.OrganizationID), 10),
	}
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(strings.ToLower(req.Currency)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Description),
				},
				// Stripe expects the smallest currency unit.
				UnitAmount: stripe.Int64(req.Amount.Mul(hundredCents).IntPart()),
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(fmt.Sprintf("%s/invoices/%d?payment=success", p.appBaseURL, req.InvoiceID)),
		CancelURL:  stripe.String(fmt.Sprintf("%s/invoices/%d?payment=cancelled", p.appBaseURL, req.InvoiceID)),
		// Carry the metadata onto the payment intent as well, so failed
		// payment events can be traced back to the invoice.
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{Metadata: meta},
	}
	params.Context = ctx
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	for k, v := range meta {
		params.AddMetadata(k, v)
	}

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (p *StripeProvider) VerifyWebhook(payload []byte, signature string) (*Event, error) {
	ev, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return nil, err
	}
	return &Event{ID: ev.ID, Type: string(ev.Type), Data: ev.Data.Raw}, nil
}

func (p *StripeProvider) TranslateEvent(event *Event) *Outcome {
	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data, &sess); err != nil {
			return nil
		}
		id, ok := invoiceIDFromMetadata(sess.Metadata)
		if !ok {
			return nil
		}
		return &Outcome{
			InvoiceID: id,
			Status:    OutcomePaid,
			Amount:    decimal.New(sess.AmountTotal, -2),
			Currency:  strings.ToUpper(string(sess.Currency)),
		}
	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data, &pi); err != nil {
			return nil
		}
		id, ok := invoiceIDFromMetadata(pi.Metadata)
		if !ok {
			return nil
		}
		return &Outcome{
			InvoiceID: id,
			Status:    OutcomeFailed,
			Amount:    decimal.New(pi.Amount, -2),
			Currency:  strings.ToUpper(string(pi.Currency)),
		}
	}
	return nil
}

var hundredCents = decimal.NewFromInt(100)

func invoiceIDFromMetadata(meta map[string]string) (uint, bool) {
	raw := meta["invoice_id"]
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
