// Package handler contains HTTP handlers for the Eva Premium backend.
//
// This file implements the checkout endpoint the mobile client calls to
// start a premium purchase.
//
// Route:
//   - POST /api/payment-intent -> CreatePaymentIntent
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/vfarias/evapay/internal/domain"
	"github.com/vfarias/evapay/internal/service"
)

// CheckoutHandler handles checkout-creation HTTP requests.
type CheckoutHandler struct {
	checkout service.CheckoutService
	logger   *slog.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(checkoutService service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkoutService,
		logger:   logger,
	}
}

// RegisterRoutes registers checkout routes on the provided mux.
func (h *CheckoutHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/payment-intent", h.CreatePaymentIntent)
}

// checkoutRequest is the body the mobile client sends.
type checkoutRequest struct {
	PlanID string `json:"planId"`
	Email  string `json:"email"`
	UserID string `json:"userId"`
}

// checkoutResponse drives the client's payment sheet.
type checkoutResponse struct {
	PaymentIntent string `json:"paymentIntent"`
	EphemeralKey  string `json:"ephemeralKey"`
	Customer      string `json:"customer"`
	BoletoURL     string `json:"boletoUrl,omitempty"`
}

// CreatePaymentIntent creates a payment intent and ephemeral key for
// one checkout attempt.
func (h *CheckoutHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("checkout.decode", "Invalid request body"))
		return
	}

	userID := req.UserID
	if userID == "" {
		// Checkouts started before sign-in carry the placeholder; the
		// webhook flow refuses to grant entitlements for it.
		userID = domain.AnonymousUserID
	}

	result, err := h.checkout.CreateCheckout(r.Context(), service.CheckoutParams{
		PlanID: domain.PlanID(req.PlanID),
		Email:  req.Email,
		UserID: userID,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{
		PaymentIntent: result.PaymentIntentSecret,
		EphemeralKey:  result.EphemeralKeySecret,
		Customer:      result.CustomerID,
		BoletoURL:     result.BoletoURL,
	})
}
