package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fakturo/fakturo/internal/models"
	"github.com/fakturo/fakturo/internal/providers"
)

// fakeProvider verifies a fixed signature and replays canned outcomes.
type fakeProvider struct {
	outcomes map[string]*providers.Outcome
	linkURL  string
	linkErr  error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) CreatePaymentLink(_ context.Context, _ *providers.PaymentLinkRequest) (string, error) {
	return f.linkURL, f.linkErr
}

func (f *fakeProvider) VerifyWebhook(payload []byte, signature string) (*providers.Event, error) {
	if signature != "valid" {
		return nil, errors.New("signature mismatch")
	}
	return &providers.Event{ID: string(payload), Type: "fake.event"}, nil
}

func (f *fakeProvider) TranslateEvent(event *providers.Event) *providers.Outcome {
	return f.outcomes[event.ID]
}

func TestHandleWebhookMarksInvoicePaid(t *testing.T) {
	db := setupTestDB(t)
	org, client, _ := seedOrg(t, db, "acme")
	inv, err := NewInvoiceService(db).Create(context.Background(), org.ID, invoiceInput(client.ID))
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	provider := &fakeProvider{outcomes: map[string]*providers.Outcome{
		"evt_1": {InvoiceID: inv.ID, Status: providers.OutcomePaid, Amount: inv.Total, Currency: inv.Currency},
	}}
	svc := NewPaymentService(db, provider)

	if err := svc.HandleWebhook(context.Background(), []byte("evt_1"), "valid"); err != nil {
		t.Fatalf("handle webhook: %v", err)
	}

	var got models.Invoice
	if err := db.First(&got, inv.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != models.InvoiceStatusPaid {
		t.Errorf("status = %s, want PAID", got.Status)
	}
	if got.PaidAt == nil {
		t.Error("paid_at not set")
	}

	payments, err := svc.ListPayments(context.Background(), org.ID, inv.ID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("payments = %d, want 1", len(payments))
	}
	p := payments[0]
	if p.ExternalID != "evt_1" || p.Status != models.PaymentStatusCompleted || !p.Amount.Equal(inv.Total) {
		t.Errorf("payment = %+v", p)
	}
}

func TestHandleWebhookIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	org, client, _ := seedOrg(t, db, "acme")
	inv, err := NewInvoiceService(db).Create(context.Background(), org.ID, invoiceInput(client.ID))
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	provider := &fakeProvider{outcomes: map[string]*providers.Outcome{
		"evt_dup": {InvoiceID: inv.ID, Status: providers.OutcomePaid, Amount: inv.Total, Currency: inv.Currency},
	}}
	svc := NewPaymentService(db, provider)

	for i := 0; i < 3; i++ {
		if err := svc.HandleWebhook(context.Background(), []byte("evt_dup"), "valid"); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}

	var count int64
	db.Model(&models.Payment{}).Count(&count)
	if count != 1 {
		t.Errorf("payment rows = %d, want exactly 1 after redeliveries", count)
	}
}

func TestHandleWebhookRejectsInvalidSignature(t *testing.T) {
	db := setupTestDB(t)
	org, client, _ := seedOrg(t, db, "acme")
	inv, err := NewInvoiceService(db).Create(context.Background(), org.ID, invoiceInput(client.ID))
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	provider := &fakeProvider{outcomes: map[string]*providers.Outcome{
		"evt_1": {InvoiceID: inv.ID, Status: providers.OutcomePaid, Amount: inv.Total, Currency: inv.Currency},
	}}
	svc := NewPaymentService(db, provider)

	err = svc.HandleWebhook(context.Background(), []byte("evt_1"), "forged")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}

	// Nothing mutated.
	var count int64
	db.Model(&models.Payment{}).Count(&count)
	if count != 0 {
		t.Errorf("payment rows = %d, want 0", count)
	}
	var got models.Invoice
	db.First(&got, inv.ID)
	if got.Status != models.InvoiceStatusDraft {
		t.Errorf("status = %s, want DRAFT untouched", got.Status)
	}
}

func TestHandleWebhookIgnoresIrrelevantEvents(t *testing.T) {
	db := setupTestDB(t)
	seedOrg(t, db, "acme")

	// No outcome registered: TranslateEvent returns nil.
	svc := NewPaymentService(db, &fakeProvider{outcomes: map[string]*providers.Outcome{}})

	if err := svc.HandleWebhook(context.Background(), []byte("evt_other"), "valid"); err != nil {
		t.Fatalf("irrelevant event: %v", err)
	}
	var count int64
	db.Model(&models.Payment{}).Count(&count)
	if count != 0 {
		t.Errorf("payment rows = %d, want 0", count)
	}
}

func TestHandleWebhookAcksUnknownInvoice(t *testing.T) {
	db := setupTestDB(t)
	seedOrg(t, db, "acme")

	provider := &fakeProvider{outcomes: map[string]*providers.Outcome{
		"evt_ghost": {InvoiceID: 9999, Status: providers.OutcomePaid, Amount: d("10.00"), Currency: "EUR"},
	}}
	svc := NewPaymentService(db, provider)

	if err := svc.HandleWebhook(context.Background(), []byte("evt_ghost"), "valid"); err != nil {
		t.Fatalf("unknown invoice should ack, got: %v", err)
	}
}

func TestHandleWebhookRecordsFailedPayment(t *testing.T) {
	db := setupTestDB(t)
	org, client, _ := seedOrg(t, db, "acme")
	inv, err := NewInvoiceService(db).Create(context.Background(), org.ID, invoiceInput(client.ID))
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	provider := &fakeProvider{outcomes: map[string]*providers.Outcome{
		"evt_fail": {InvoiceID: inv.ID, Status: providers.OutcomeFailed, Amount: inv.Total, Currency: inv.Currency},
	}}
	svc := NewPaymentService(db, provider)

	if err := svc.HandleWebhook(context.Background(), []byte("evt_fail"), "valid"); err != nil {
		t.Fatalf("handle webhook: %v", err)
	}

	payments, _ := svc.ListPayments(context.Background(), org.ID, inv.ID)
	if len(payments) != 1 || payments[0].Status != models.PaymentStatusFailed {
		t.Fatalf("payments = %+v, want one FAILED row", payments)
	}

	// A failed attempt never advances the invoice.
	var got models.Invoice
	db.First(&got, inv.ID)
	if got.Status != models.InvoiceStatusDraft {
		t.Errorf("status = %s, want DRAFT", got.Status)
	}
}

func TestHandleWebhookPaidIsTerminal(t *testing.T) {
	db := setupTestDB(t)
	org, client, _ := seedOrg(t, db, "acme")
	inv, err := NewInvoiceService(db).Create(context.Background(), org.ID, invoiceInput(client.ID))
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	provider := &fakeProvider{outcomes: map[string]*providers.Outcome{
		"evt_a": {InvoiceID: inv.ID, Status: providers.OutcomePaid, Amount: inv.Total, Currency: inv.Currency},
		"evt_b": {InvoiceID: inv.ID, Status: providers.OutcomePaid, Amount: inv.Total, Currency: inv.Currency},
	}}
	svc := NewPaymentService(db, provider)

	if err := svc.HandleWebhook(context.Background(), []byte("evt_a"), "valid"); err != nil {
		t.Fatalf("first event: %v", err)
	}
	var first models.Invoice
	db.First(&first, inv.ID)
	paidAt := first.PaidAt
	if paidAt == nil {
		t.Fatal("paid_at not set")
	}

	time.Sleep(10 * time.Millisecond)

	// A distinct second event still records its payment row but must not
	// rewrite paid_at.
	if err := svc.HandleWebhook(context.Background(), []byte("evt_b"), "valid"); err != nil {
		t.Fatalf("second event: %v", err)
	}
	var second models.Invoice
	db.First(&second, inv.ID)
	if second.Status != models.InvoiceStatusPaid {
		t.Errorf("status = %s, want PAID", second.Status)
	}
	if !second.PaidAt.Equal(*paidAt) {
		t.Errorf("paid_at rewritten: %v -> %v", paidAt, second.PaidAt)
	}

	payments, _ := svc.ListPayments(context.Background(), org.ID, inv.ID)
	if len(payments) != 2 {
		t.Errorf("payments = %d, want 2 (audit trail keeps both)", len(payments))
	}
}

func TestHandleWebhookRecordsMismatchedAmountAsReported(t *testing.T) {
	db := setupTestDB(t)
	org, client, _ := seedOrg(t, db, "acme")
	inv, err := NewInvoiceService(db).Create(context.Background(), org.ID, invoiceInput(client.ID))
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	provider := &fakeProvider{outcomes: map[string]*providers.Outcome{
		"evt_short": {InvoiceID: inv.ID, Status: providers.OutcomePaid, Amount: d("1.00"), Currency: inv.Currency},
	}}
	svc := NewPaymentService(db, provider)

	if err := svc.HandleWebhook(context.Background(), []byte("evt_short"), "valid"); err != nil {
		t.Fatalf("handle webhook: %v", err)
	}

	payments, _ := svc.ListPayments(context.Background(), org.ID, inv.ID)
	if len(payments) != 1 || !payments[0].Amount.Equal(d("1.00")) {
		t.Fatalf("payments = %+v, want provider-reported amount 1.00", payments)
	}
}

func TestCreatePaymentLink(t *testing.T) {
	db := setupTestDB(t)
	org, client, _ := seedOrg(t, db, "acme")
	inv, err := NewInvoiceService(db).Create(context.Background(), org.ID, invoiceInput(client.ID))
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	svc := NewPaymentService(db, &fakeProvider{linkURL: "https://checkout.test/s/abc"})
	url, err := svc.CreatePaymentLink(context.Background(), org.ID, inv.ID)
	if err != nil {
		t.Fatalf("create link: %v", err)
	}
	if url != "https://checkout.test/s/abc" {
		t.Errorf("url = %s", url)
	}

	// Tenant scoping applies here too.
	other, _, _ := seedOrg(t, db, "globex")
	if _, err := svc.CreatePaymentLink(context.Background(), other.ID, inv.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-tenant link err = %v, want ErrNotFound", err)
	}

	failing := NewPaymentService(db, &fakeProvider{linkErr: errors.New("stripe down")})
	if _, err := failing.CreatePaymentLink(context.Background(), org.ID, inv.ID); !errors.Is(err, ErrDelivery) {
		t.Errorf("provider failure err = %v, want ErrDelivery", err)
	}
}
