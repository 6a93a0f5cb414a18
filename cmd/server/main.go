package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/fakturo/fakturo/internal/config"
	"github.com/fakturo/fakturo/internal/db"
	"github.com/fakturo/fakturo/internal/logger"
	"github.com/fakturo/fakturo/internal/mail"
	"github.com/fakturo/fakturo/internal/providers"
	"github.com/fakturo/fakturo/internal/server"
	"github.com/fakturo/fakturo/internal/services"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	markOverdueFlag = flag.Bool("mark-overdue", false, "Mark past-due SENT invoices OVERDUE and exit")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := config.Load()

	if err := logger.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatal().Err(err).Msg("logger setup failed")
	}

	dbConn, err := db.ConnectAndMigrate(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}

	if *migrateOnlyFlag {
		log.Info().Msg("migrations completed")
		return
	}

	// Intended to be invoked from a scheduler (cron or similar).
	if *markOverdueFlag {
		n, err := services.NewInvoiceService(dbConn).MarkOverdue(context.Background(), time.Now())
		if err != nil {
			log.Fatal().Err(err).Msg("mark-overdue failed")
		}
		log.Info().Int64("invoices", n).Msg("marked overdue")
		return
	}

	app := server.New(server.Deps{
		DB:       dbConn,
		Provider: providers.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.AppBaseURL),
		Mailer:   mail.NewSMTPMailer(cfg.SMTP),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("server stopped")
}
