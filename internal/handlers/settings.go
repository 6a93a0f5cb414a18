package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fakturo/fakturo/internal/auth"
	"github.com/fakturo/fakturo/internal/httpx"
	"github.com/fakturo/fakturo/internal/models"
	"github.com/fakturo/fakturo/internal/validation"
)

// SettingsHandler exposes the organization's invoicing defaults. Changing the
// prefix only affects invoices numbered from then on; issued numbers are
// immutable.
type SettingsHandler struct {
	DB *gorm.DB
}

func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{DB: db}
}

// Get: GET /settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var org models.Organization
	if err := h.DB.WithContext(r.Context()).First(&org, p.OrganizationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, org)
}

// Update: PUT /settings
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var req struct {
		Name           string           `json:"name"`
		InvoicePrefix  string           `json:"invoice_prefix"`
		Currency       string           `json:"currency"`
		DefaultTaxRate *decimal.Decimal `json:"default_tax_rate,omitempty"`
		Terms          string           `json:"terms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}

	v := validation.Violations{}
	validation.Required("name", req.Name, v)
	validation.Required("invoice_prefix", req.InvoicePrefix, v)
	if len(req.InvoicePrefix) > 20 {
		v["invoice_prefix"] = "too_long"
	}
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if len(req.Currency) != 3 {
		v["currency"] = "must_be_iso_4217"
	}
	if req.DefaultTaxRate != nil {
		validation.RangeDecimal("default_tax_rate", *req.DefaultTaxRate, decimal.Zero, decimal.NewFromInt(100), v)
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}

	updates := map[string]any{
		"name":           strings.TrimSpace(req.Name),
		"invoice_prefix": strings.TrimSpace(req.InvoicePrefix),
		"currency":       req.Currency,
		"terms":          req.Terms,
	}
	if req.DefaultTaxRate != nil {
		updates["default_tax_rate"] = *req.DefaultTaxRate
	}

	res := h.DB.WithContext(r.Context()).Model(&models.Organization{}).
		Where("id = ?", p.OrganizationID).
		Updates(updates)
	if res.Error != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	if res.RowsAffected == 0 {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}

	var org models.Organization
	if err := h.DB.WithContext(r.Context()).First(&org, p.OrganizationID).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, org)
}
