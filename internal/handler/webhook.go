// Package handler contains HTTP handlers for the Eva Premium backend.
//
// This file implements the Stripe webhook handler for processing
// payment events.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC because Stripe calls it directly. Authentication
// is the Stripe webhook signature over the raw request body.
package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/vfarias/evapay/internal/billing"
	"github.com/vfarias/evapay/internal/domain"
	"github.com/vfarias/evapay/internal/metrics"
	"github.com/vfarias/evapay/internal/service"
)

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	billing     billing.Service
	entitlement service.EntitlementService
	logger      *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(billingService billing.Service, entitlementService service.EntitlementService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing:     billingService,
		entitlement: entitlementService,
		logger:      logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes incoming Stripe webhook events.
//
// Once the signature checks out the response is always 200: Stripe
// retries anything else, and a persistent store outage must not turn
// into a redelivery storm for an already-authenticated event. Failed
// entitlement writes are logged and counted instead.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	// Read body (limit to 64KB). The raw bytes are what was signed;
	// nothing may re-serialize them before verification.
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		writeJSONError(w, http.StatusBadRequest, domain.EINVALID, "Failed to read request body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	event, err := h.billing.VerifyWebhookSignature(body, signature)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		writeJSONError(w, http.StatusBadRequest, domain.EINVALID, "Webhook signature verification failed")
		return
	}

	metrics.WebhookEventsTotal.WithLabelValues(string(event.Type)).Inc()
	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	switch event.Type {
	case "payment_intent.succeeded":
		if err := h.entitlement.ApplySucceededPayment(r.Context(), event); err != nil {
			// Logged, not surfaced: the event is acknowledged either
			// way so Stripe does not redeliver indefinitely.
			h.logger.Error("failed to apply succeeded payment", "error", err, "event_id", event.ID)
		}
	case "payment_intent.payment_failed":
		h.logger.Warn("payment failed", "event_id", event.ID)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
