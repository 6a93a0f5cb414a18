package handlers

import (
	"net/http"

	"github.com/fakturo/fakturo/internal/auth"
	"github.com/fakturo/fakturo/internal/httpx"
	"github.com/fakturo/fakturo/internal/services"
)

type ReportsHandler struct {
	Svc *services.ReportsService
}

func NewReportsHandler(svc *services.ReportsService) *ReportsHandler {
	return &ReportsHandler{Svc: svc}
}

// Dashboard: GET /reports/dashboard
func (h *ReportsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	stats, err := h.Svc.Dashboard(r.Context(), p.OrganizationID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

// Revenue: GET /reports/revenue — paid revenue per month, last six months.
func (h *ReportsHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	months, err := h.Svc.RevenueOverTime(r.Context(), p.OrganizationID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"months": months})
}
