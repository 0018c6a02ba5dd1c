package http

import (
	"log"
	"net/http"
)

// OrderAPI is everything the storefront endpoints need from the order
// service.
type OrderAPI interface {
	OrderCreator
	SessionOrderFinder
	StatsProvider
}

type RouterConfig struct {
	Verifier        SignatureVerifier
	Events          EventHandler
	Orders          OrderAPI
	Store           Pinger
	Metrics         http.Handler
	WebhookObserver WebhookObserver
	CORSOrigins     []string
	Logger          *log.Logger
}

// NewRouter wires every route behind the CORS and request-logging
// middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/health", HandleHealth(cfg.Store, logger))
	mux.Handle("/webhooks/stripe", HandleStripeWebhook(cfg.Verifier, cfg.Events,
		WithWebhookLogger(logger),
		WithWebhookObserver(cfg.WebhookObserver),
	))
	if cfg.Orders != nil {
		mux.Handle("/orders", HandleCreateOrder(cfg.Orders))
		mux.Handle("/orders/by-session", HandleOrderBySession(cfg.Orders))
		mux.Handle("/orders/stats", HandleOrderStats(cfg.Orders))
	}
	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}
	mux.Handle("/", NotFoundHandler())

	return RequestLogger(CORS(cfg.CORSOrigins, mux), logger)
}

// NotFoundHandler returns a JSON 404 response for unknown routes.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	})
}
