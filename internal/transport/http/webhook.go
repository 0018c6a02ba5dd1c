package http

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/vmomparler1/just5stars-nextjs/internal/app"
	"github.com/vmomparler1/just5stars-nextjs/internal/domain"
	"github.com/vmomparler1/just5stars-nextjs/internal/webhook"
)

// maxWebhookBody caps the raw payload read before authentication.
const maxWebhookBody = 1 << 20

// SignatureVerifier authenticates a raw webhook body.
type SignatureVerifier interface {
	Verify(header string, body []byte) error
}

// EventHandler is the minimal interface needed to reconcile an event.
type EventHandler interface {
	Handle(ctx context.Context, env domain.Envelope, ev domain.Event) (app.ReconcileResult, error)
}

// WebhookObserver counts responses by status.
type WebhookObserver interface {
	ObserveWebhook(status int)
}

type webhookHandler struct {
	verifier SignatureVerifier
	events   EventHandler
	logger   *log.Logger
	observer WebhookObserver
}

type WebhookOption func(*webhookHandler)

func WithWebhookLogger(logger *log.Logger) WebhookOption {
	return func(h *webhookHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithWebhookObserver(obs WebhookObserver) WebhookOption {
	return func(h *webhookHandler) { h.observer = obs }
}

// HandleStripeWebhook authenticates, decodes and reconciles payment events.
// Once a delivery is authenticated it is always acknowledged with 200;
// reconciliation problems are logged, never reported to the sender.
func HandleStripeWebhook(verifier SignatureVerifier, events EventHandler, opts ...WebhookOption) http.HandlerFunc {
	h := &webhookHandler{verifier: verifier, events: events, logger: log.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h.serve
}

func (h *webhookHandler) serve(w http.ResponseWriter, r *http.Request) {
	status := h.process(w, r)
	if h.observer != nil {
		h.observer.ObserveWebhook(status)
	}
}

func (h *webhookHandler) process(w http.ResponseWriter, r *http.Request) int {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return http.StatusMethodNotAllowed
	}
	if h.verifier == nil {
		h.logger.Printf("ERROR: webhook received but no signing secret is configured")
		writeError(w, http.StatusInternalServerError, codeWebhookNotConfigured, domain.ErrSecretNotConfigured.Error())
		return http.StatusInternalServerError
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, codePayloadTooLarge, "payload too large")
			return http.StatusBadRequest
		}
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return http.StatusBadRequest
	}

	if err := h.verifier.Verify(r.Header.Get(webhook.SignatureHeader), body); err != nil {
		h.logger.Printf("WARN: webhook rejected request_id=%s err=%v", RequestIDFromContext(r.Context()), err)
		writeError(w, http.StatusBadRequest, codeInvalidSignature, "webhook signature verification failed")
		return http.StatusBadRequest
	}

	env, ev, err := webhook.Decode(body)
	switch {
	case errors.Is(err, domain.ErrUnhandledEventType):
		h.logger.Printf("webhook ignored event_id=%s type=%s", env.ID, env.Type)
		return acknowledge(w)
	case err != nil:
		h.logger.Printf("WARN: webhook payload rejected request_id=%s err=%v", RequestIDFromContext(r.Context()), err)
		writeError(w, http.StatusBadRequest, codeInvalidPayload, "invalid payload")
		return http.StatusBadRequest
	}

	res, err := h.events.Handle(r.Context(), env, ev)
	if err != nil {
		h.logger.Printf("ERROR: reconcile failed event_id=%s type=%s request_id=%s err=%v", env.ID, env.Type, RequestIDFromContext(r.Context()), err)
	} else {
		h.logger.Printf("webhook handled event_id=%s type=%s outcome=%s order_id=%s", env.ID, env.Type, res.Outcome, res.OrderID)
	}
	return acknowledge(w)
}

func acknowledge(w http.ResponseWriter) int {
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	return http.StatusOK
}
