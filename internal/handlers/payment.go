package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fakturo/fakturo/internal/auth"
	"github.com/fakturo/fakturo/internal/httpx"
	"github.com/fakturo/fakturo/internal/services"
)

type PaymentHandler struct {
	Svc *services.PaymentService
}

func NewPaymentHandler(svc *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{Svc: svc}
}

// CreateLink: POST /payments/create-link — returns a hosted checkout URL for an open
// invoice.
func (h *PaymentHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var req struct {
		InvoiceID uint `json:"invoice_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if req.InvoiceID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"invoice_id": "required"})
		return
	}
	url, err := h.Svc.CreatePaymentLink(r.Context(), p.OrganizationID, req.InvoiceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"url": url})
}

// List: GET /payments?invoice_id=... — payments recorded for one invoice.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, ok := queryUint(r, "invoice_id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	payments, err := h.Svc.ListPayments(r.Context(), p.OrganizationID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": payments, "total": len(payments)})
}

// Webhook: POST /payments/webhook — unauthenticated; trust comes from the
// provider signature over the raw body. Anything past a valid signature is
// acknowledged with 200 so the provider stops retrying; reconciliation
// problems are logged, not surfaced.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_body", nil)
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		sig = r.Header.Get("X-Signature")
	}

	if err := h.Svc.HandleWebhook(r.Context(), payload, sig); err != nil {
		if errors.Is(err, services.ErrInvalidSignature) {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_signature", nil)
			return
		}
		log.Error().Err(err).Msg("webhook processing failed")
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"received": true})
}
