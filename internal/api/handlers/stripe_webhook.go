package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tenantkit/internal/core"
	"tenantkit/internal/types"
)

// maxWebhookBodySize bounds a Stripe webhook payload (64 KB).
const maxWebhookBodySize = 64 * 1024

// WebhookProcessor verifies and applies one Stripe delivery.
type WebhookProcessor interface {
	Handle(ctx context.Context, payload []byte, signature string) error
}

// StripeWebhookHandler receives Stripe events. It sits outside the session
// middleware; the Stripe-Signature header authenticates the caller.
type StripeWebhookHandler struct {
	processor WebhookProcessor
	logger    *slog.Logger
}

// NewStripeWebhookHandler builds a StripeWebhookHandler.
func NewStripeWebhookHandler(processor WebhookProcessor, logger *slog.Logger) *StripeWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeWebhookHandler{processor: processor, logger: logger}
}

// RegisterRoutes mounts the public webhook endpoint.
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/stripe", h.Handle)
}

// Handle answers 200 once the event is applied or deliberately ignored.
// Signature failures are 401; storage failures are 5xx so Stripe retries.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body", "error", err)
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationBody, "failed to read request body", err))
		return
	}

	if err := h.processor.Handle(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		core.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
