package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/fakturo/fakturo/internal/auth"
	"github.com/fakturo/fakturo/internal/httpx"
	"github.com/fakturo/fakturo/internal/mail"
	"github.com/fakturo/fakturo/internal/models"
	"github.com/fakturo/fakturo/internal/pdf"
	"github.com/fakturo/fakturo/internal/services"
)

type InvoiceHandler struct {
	Svc    *services.InvoiceService
	Mailer mail.Mailer
}

func NewInvoiceHandler(svc *services.InvoiceService, mailer mail.Mailer) *InvoiceHandler {
	return &InvoiceHandler{Svc: svc, Mailer: mailer}
}

type invoiceItemReq struct {
	ProductID   *uint           `json:"product_id,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type invoiceReq struct {
	ClientID  uint             `json:"client_id"`
	IssueDate string           `json:"issue_date"`
	DueDate   string           `json:"due_date"`
	Currency  string           `json:"currency"`
	TaxRate   *decimal.Decimal `json:"tax_rate,omitempty"`
	Notes     string           `json:"notes"`
	Items     []invoiceItemReq `json:"items"`
}

// parseDate accepts a plain date or a full RFC 3339 timestamp.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func (req *invoiceReq) toInput() (services.CreateInvoiceInput, map[string]string) {
	bad := map[string]string{}
	in := services.CreateInvoiceInput{
		ClientID: req.ClientID,
		Currency: req.Currency,
		TaxRate:  req.TaxRate,
		Notes:    req.Notes,
	}
	if req.ClientID == 0 {
		bad["client_id"] = "required"
	}
	var err error
	if in.IssueDate, err = parseDate(req.IssueDate); err != nil {
		bad["issue_date"] = "invalid_date"
	}
	if in.DueDate, err = parseDate(req.DueDate); err != nil {
		bad["due_date"] = "invalid_date"
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, services.LineInput{
			ProductID:   it.ProductID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	if len(bad) == 0 {
		bad = nil
	}
	return in, bad
}

// Create: POST /invoices
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var req invoiceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	in, bad := req.toInput()
	if bad != nil {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", bad)
		return
	}
	inv, err := h.Svc.Create(r.Context(), p.OrganizationID, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

// Preview: POST /invoices/preview — computes totals without persisting and
// without consuming an invoice number.
func (h *InvoiceHandler) Preview(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var req invoiceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	in, bad := req.toInput()
	if bad != nil {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", bad)
		return
	}
	totals, currency, err := h.Svc.Preview(r.Context(), p.OrganizationID, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"subtotal":   totals.Subtotal,
		"tax_amount": totals.TaxAmount,
		"total":      totals.Total,
		"currency":   currency,
	})
}

// List: GET /invoices
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	invs, err := h.Svc.List(r.Context(), p.OrganizationID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": invs, "total": len(invs)})
}

// Get: GET /invoices/{id}
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, ok := idFromPath(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	inv, err := h.Svc.Get(r.Context(), p.OrganizationID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// render resolves the invoice into the document model and produces PDF bytes.
func (h *InvoiceHandler) render(inv *models.Invoice, orgName string) ([]byte, error) {
	doc := pdf.Invoice{
		Number:           inv.Number,
		IssueDate:        inv.IssueDate.Format("2006-01-02"),
		DueDate:          inv.DueDate.Format("2006-01-02"),
		Status:           string(inv.Status),
		Currency:         inv.Currency,
		OrganizationName: orgName,
		Subtotal:         inv.Subtotal,
		TaxRate:          inv.TaxRate,
		TaxAmount:        inv.TaxAmount,
		Total:            inv.Total,
		Notes:            inv.Notes,
	}
	if inv.Client != nil {
		doc.ClientName = inv.Client.Name
		doc.ClientEmail = inv.Client.Email
		doc.ClientAddress = inv.Client.Address
	}
	for _, it := range inv.Items {
		doc.Lines = append(doc.Lines, pdf.Line{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Total:       it.Total,
		})
	}
	return pdf.Render(doc)
}

func orgName(inv *models.Invoice) string {
	if inv.Organization != nil {
		return inv.Organization.Name
	}
	return ""
}

// PDF: GET /invoices/{id}/pdf
func (h *InvoiceHandler) PDF(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, ok := idFromPath(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	inv, err := h.Svc.Get(r.Context(), p.OrganizationID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	data, err := h.render(inv, orgName(inv))
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "pdf_generation_failed", nil)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "invoice-"+inv.Number+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Email: POST /invoices/{id}/email — renders the document, attempts
// delivery and, only on success, transitions DRAFT to SENT. Failure leaves
// the invoice untouched. No database transaction is held across the mail
// call.
func (h *InvoiceHandler) Email(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, ok := idFromPath(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	inv, err := h.Svc.Get(r.Context(), p.OrganizationID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if inv.Client == nil || inv.Client.Email == "" {
		httpx.JSONError(w, http.StatusBadRequest, "client_email_missing", nil)
		return
	}

	data, err := h.render(inv, orgName(inv))
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "pdf_generation_failed", nil)
		return
	}

	msg := &mail.Message{
		To:             inv.Client.Email,
		Subject:        fmt.Sprintf("Invoice %s", inv.Number),
		Body:           fmt.Sprintf("Please find attached invoice %s.", inv.Number),
		AttachmentName: "invoice-" + inv.Number + ".pdf",
		Attachment:     data,
	}
	if err := h.Mailer.Send(r.Context(), msg); err != nil {
		log.Error().Err(err).Str("number", inv.Number).Msg("invoice email delivery failed")
		httpx.JSONError(w, http.StatusBadGateway, "delivery_failed", nil)
		return
	}

	if err := h.Svc.MarkSent(r.Context(), p.OrganizationID, inv.ID); err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sent": true})
}
