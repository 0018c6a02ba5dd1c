package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmomparler1/just5stars-nextjs/internal/app"
	"github.com/vmomparler1/just5stars-nextjs/internal/clock"
	"github.com/vmomparler1/just5stars-nextjs/internal/config"
	"github.com/vmomparler1/just5stars-nextjs/internal/effects"
	"github.com/vmomparler1/just5stars-nextjs/internal/metrics"
	"github.com/vmomparler1/just5stars-nextjs/internal/notify"
	transporthttp "github.com/vmomparler1/just5stars-nextjs/internal/transport/http"
	"github.com/vmomparler1/just5stars-nextjs/internal/webhook"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the payment webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	logger := log.Default()

	cfg, err := config.Load(logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(true); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	store, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	clk := clock.NewSystem()
	reg := metrics.NewRegistry()

	verifier, err := webhook.NewVerifier(cfg.Webhook.Secrets, webhook.WithTolerance(cfg.Webhook.Tolerance))
	if err != nil {
		return fmt.Errorf("webhook verifier: %w", err)
	}

	confirmed, cancelled, closeActions, err := buildActions(cfg, clk, logger)
	if err != nil {
		return err
	}
	defer closeActions()

	dispatchOpts := []effects.Option{
		effects.OnConfirmed(confirmed...),
		effects.OnCancelled(cancelled...),
		effects.WithActionTimeout(cfg.Effects.ActionTimeout),
		effects.WithLogger(logger),
		effects.WithObserver(reg),
	}
	if cfg.Effects.Async {
		dispatchOpts = append(dispatchOpts, effects.WithAsync())
	}
	dispatcher := effects.NewDispatcher(dispatchOpts...)

	reconciler := app.NewReconciler(store.orders, store.ledger, dispatcher, clk,
		app.WithReconcilerLogger(logger),
		app.WithOutcomeRecorder(reg),
	)
	orderSvc := app.NewOrderService(store.orders, clk)

	handler := transporthttp.NewRouter(transporthttp.RouterConfig{
		Verifier:        verifier,
		Events:          reconciler,
		Orders:          orderSvc,
		Store:           store,
		Metrics:         reg.Handler(),
		WebhookObserver: reg,
		CORSOrigins:     cfg.CORSOrigins,
		Logger:          logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("api listening on :%s store=%s async_effects=%t", cfg.Port, cfg.Store, cfg.Effects.Async)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
		}
	case <-stopCtx.Done():
		log.Printf("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("server shutdown error: %v", err)
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Effects.DrainTimeout)
	defer drainCancel()
	if err := dispatcher.Drain(drainCtx); err != nil {
		log.Printf("WARN: side effects still running at shutdown: %v", err)
	}
	log.Printf("server stopped")
	return nil
}

// buildActions wires every notification channel that is configured. Missing
// channels are skipped with a warning.
func buildActions(cfg config.Config, clk clock.Clock, logger *log.Logger) (confirmed, cancelled []effects.Action, closeFn func(), err error) {
	closeFn = func() {}

	if cfg.Meta.Enabled() {
		confirmed = append(confirmed, notify.NewConversionsClient(notify.ConversionsConfig{
			PixelID:   cfg.Meta.PixelID,
			Token:     cfg.Meta.AccessToken,
			Currency:  cfg.Meta.Currency,
			SourceURL: cfg.Meta.SourceURL,
		}, clk))
	} else {
		logger.Printf("WARN: META_PIXEL_ID not set, conversion tracking disabled")
	}

	if cfg.SMTP.Enabled() {
		composer, err := notify.NewComposer(cfg.SMTP.Locale)
		if err != nil {
			return nil, nil, closeFn, fmt.Errorf("email templates: %w", err)
		}
		var invoices notify.InvoiceSource
		if cfg.Stripe.SecretKey != "" {
			invoices = notify.NewInvoiceFetcher(cfg.Stripe.APIBase, cfg.Stripe.SecretKey)
		} else {
			logger.Printf("WARN: STRIPE_SECRET_KEY not set, confirmation emails go out without invoice")
		}
		mailer := notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			SSL:      cfg.SMTP.SSL,
		})
		confirmed = append(confirmed, notify.NewConfirmationEmail(composer, mailer, invoices, cfg.SMTP.BCC, logger))
	} else {
		logger.Printf("WARN: SMTP_HOST not set, confirmation emails disabled")
	}

	if cfg.CRMURL != "" {
		confirmed = append(confirmed, notify.NewCRMHook(cfg.CRMURL))
	} else {
		logger.Printf("WARN: CRM_WEBHOOK_URL not set, CRM notifications disabled")
	}

	if cfg.Kafka.Enabled() {
		publisher := notify.NewLifecyclePublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		confirmed = append(confirmed, publisher)
		cancelled = append(cancelled, publisher)
		closeFn = func() {
			if err := publisher.Close(); err != nil {
				logger.Printf("WARN: closing lifecycle publisher: %v", err)
			}
		}
	}

	return confirmed, cancelled, closeFn, nil
}
