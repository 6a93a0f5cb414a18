// Package server assembles handlers, services and middleware into the
// application's http.Handler.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/fakturo/fakturo/internal/auth"
	"github.com/fakturo/fakturo/internal/handlers"
	"github.com/fakturo/fakturo/internal/httpx"
	"github.com/fakturo/fakturo/internal/mail"
	"github.com/fakturo/fakturo/internal/models"
	"github.com/fakturo/fakturo/internal/providers"
	"github.com/fakturo/fakturo/internal/services"
)

// Deps are the external collaborators the app needs. Tests swap in fakes.
type Deps struct {
	DB       *gorm.DB
	Provider providers.CheckoutProvider
	Mailer   mail.Mailer
}

// App is the assembled application handler.
type App struct {
	mux *http.ServeMux
	db  *gorm.DB
}

// New wires services and handlers onto a ServeMux and registers the session
// verifier against the database.
func New(deps Deps) *App {
	app := &App{mux: http.NewServeMux(), db: deps.DB}

	// A session is only as good as the user it names: verify the user still
	// exists and belongs to the claimed organization.
	auth.SetVerifier(app.verifyPrincipal)

	invoiceSvc := services.NewInvoiceService(deps.DB)
	paymentSvc := services.NewPaymentService(deps.DB, deps.Provider)
	reportsSvc := services.NewReportsService(deps.DB)

	ah := handlers.NewAuthHandler(deps.DB)
	ch := handlers.NewClientHandler(deps.DB)
	ph := handlers.NewProductHandler(deps.DB)
	ih := handlers.NewInvoiceHandler(invoiceSvc, deps.Mailer)
	pay := handlers.NewPaymentHandler(paymentSvc)
	rh := handlers.NewReportsHandler(reportsSvc)
	sh := handlers.NewSettingsHandler(deps.DB)

	m := app.mux

	// Public routes
	m.HandleFunc("GET /health", app.health)
	m.HandleFunc("POST /signup", ah.Signup)
	m.HandleFunc("POST /login", ah.Login)
	m.HandleFunc("POST /logout", ah.Logout)
	m.HandleFunc("POST /payments/webhook", pay.Webhook)

	// Authenticated resource routes
	m.Handle("GET /clients", requireAuth(ch.List))
	m.Handle("POST /clients", requireAuth(ch.Create))
	m.Handle("GET /clients/{id}", requireAuth(ch.Get))
	m.Handle("PUT /clients/{id}", requireAuth(ch.Update))
	m.Handle("DELETE /clients/{id}", requireAuth(ch.Delete))

	m.Handle("GET /products", requireAuth(ph.List))
	m.Handle("POST /products", requireAuth(ph.Create))
	m.Handle("GET /products/{id}", requireAuth(ph.Get))
	m.Handle("PUT /products/{id}", requireAuth(ph.Update))
	m.Handle("DELETE /products/{id}", requireAuth(ph.Delete))

	m.Handle("GET /invoices", requireAuth(ih.List))
	m.Handle("POST /invoices", requireAuth(ih.Create))
	m.Handle("POST /invoices/preview", requireAuth(ih.Preview))
	m.Handle("GET /invoices/{id}", requireAuth(ih.Get))
	m.Handle("GET /invoices/{id}/pdf", requireAuth(ih.PDF))
	m.Handle("POST /invoices/{id}/email", requireAuth(ih.Email))

	m.Handle("POST /payments/create-link", requireAuth(pay.CreateLink))
	m.Handle("GET /payments", requireAuth(pay.List))

	m.Handle("GET /reports/dashboard", requireAuth(rh.Dashboard))
	m.Handle("GET /reports/revenue", requireAuth(rh.Revenue))

	m.Handle("GET /settings", requireAuth(sh.Get))
	m.Handle("PUT /settings", requireAuth(sh.Update))

	return app
}

// ServeHTTP applies global middleware around the mux.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler := withRecover(withLogging(auth.Middleware(a.mux)))
	handler.ServeHTTP(w, r)
}

func (a *App) health(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) verifyPrincipal(ctx context.Context, p auth.Principal) bool {
	var count int64
	a.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND organization_id = ?", p.UserID, p.OrganizationID).
		Count(&count)
	return count > 0
}

func requireAuth(h http.HandlerFunc) http.Handler {
	return auth.RequireAuth(h)
}

// withLogging logs each request with method, path, status and duration.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// withRecover turns panics into a 500 instead of killing the connection.
func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("panic recovered")
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
