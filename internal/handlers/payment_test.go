package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fakturo/fakturo/internal/models"
	"github.com/fakturo/fakturo/internal/providers"
	"github.com/fakturo/fakturo/internal/services"
)

type stubProvider struct {
	outcomes map[string]*providers.Outcome
	linkURL  string
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) CreatePaymentLink(_ context.Context, _ *providers.PaymentLinkRequest) (string, error) {
	if p.linkURL == "" {
		return "", errors.New("provider down")
	}
	return p.linkURL, nil
}

func (p *stubProvider) VerifyWebhook(payload []byte, signature string) (*providers.Event, error) {
	if signature != "valid" {
		return nil, errors.New("bad signature")
	}
	return &providers.Event{ID: string(payload), Type: "stub.event"}, nil
}

func (p *stubProvider) TranslateEvent(event *providers.Event) *providers.Outcome {
	return p.outcomes[event.ID]
}

func TestPaymentCreateLink(t *testing.T) {
	db := setupHandlerTestDB(t)
	org, client, _ := seedInvoiceFixtures(t, db)
	inv := createDraft(t, db, org.ID, client.ID)

	h := NewPaymentHandler(services.NewPaymentService(db, &stubProvider{linkURL: "https://pay.test/s/1"}))

	body := strings.NewReader(`{"invoice_id": ` + itoa(inv.ID) + `}`)
	req := asOrg(httptest.NewRequest(http.MethodPost, "/payments/create-link", body), org.ID)
	rec := httptest.NewRecorder()
	h.CreateLink(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "https://pay.test/s/1") {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestPaymentCreateLinkProviderDown(t *testing.T) {
	db := setupHandlerTestDB(t)
	org, client, _ := seedInvoiceFixtures(t, db)
	inv := createDraft(t, db, org.ID, client.ID)

	h := NewPaymentHandler(services.NewPaymentService(db, &stubProvider{}))

	body := strings.NewReader(`{"invoice_id": ` + itoa(inv.ID) + `}`)
	req := asOrg(httptest.NewRequest(http.MethodPost, "/payments/create-link", body), org.ID)
	rec := httptest.NewRecorder()
	h.CreateLink(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestPaymentWebhook(t *testing.T) {
	db := setupHandlerTestDB(t)
	org, client, _ := seedInvoiceFixtures(t, db)
	inv := createDraft(t, db, org.ID, client.ID)

	provider := &stubProvider{outcomes: map[string]*providers.Outcome{
		"evt_1": {InvoiceID: inv.ID, Status: providers.OutcomePaid, Amount: inv.Total, Currency: inv.Currency},
	}}
	h := NewPaymentHandler(services.NewPaymentService(db, provider))

	// Invalid signature: 400, nothing mutated.
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader("evt_1"))
	req.Header.Set("Stripe-Signature", "forged")
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("forged signature status = %d, want 400", rec.Code)
	}
	var count int64
	db.Model(&models.Payment{}).Count(&count)
	if count != 0 {
		t.Fatalf("payments after forged webhook = %d", count)
	}

	// Valid signature: 200 {"received":true} and the invoice flips to PAID.
	req = httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader("evt_1"))
	req.Header.Set("Stripe-Signature", "valid")
	rec = httptest.NewRecorder()
	h.Webhook(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"received":true`) {
		t.Errorf("body = %s", rec.Body)
	}
	var got models.Invoice
	db.First(&got, inv.ID)
	if got.Status != models.InvoiceStatusPaid {
		t.Errorf("status = %s, want PAID", got.Status)
	}

	// Irrelevant event: still acknowledged.
	req = httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader("evt_unknown"))
	req.Header.Set("Stripe-Signature", "valid")
	rec = httptest.NewRecorder()
	h.Webhook(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("irrelevant event status = %d, want 200", rec.Code)
	}
}

func TestPaymentList(t *testing.T) {
	db := setupHandlerTestDB(t)
	org, client, _ := seedInvoiceFixtures(t, db)
	inv := createDraft(t, db, org.ID, client.ID)

	provider := &stubProvider{outcomes: map[string]*providers.Outcome{
		"evt_1": {InvoiceID: inv.ID, Status: providers.OutcomePaid, Amount: inv.Total, Currency: inv.Currency},
	}}
	svc := services.NewPaymentService(db, provider)
	if err := svc.HandleWebhook(context.Background(), []byte("evt_1"), "valid"); err != nil {
		t.Fatalf("webhook: %v", err)
	}

	h := NewPaymentHandler(svc)
	req := asOrg(httptest.NewRequest(http.MethodGet, "/payments?invoice_id="+itoa(inv.ID), nil), org.ID)
	rec := httptest.NewRecorder()
	h.List(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "evt_1") {
		t.Errorf("body = %s", rec.Body)
	}
}
