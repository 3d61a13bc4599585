package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/vfarias/evapay/internal/service"
)

// EntitlementHandler serves the persisted premium-access record.
//
// Route:
//   - GET /api/entitlement/{userId} -> GetEntitlement
type EntitlementHandler struct {
	entitlement service.EntitlementService
	logger      *slog.Logger
}

// NewEntitlementHandler creates a new EntitlementHandler.
func NewEntitlementHandler(entitlementService service.EntitlementService, logger *slog.Logger) *EntitlementHandler {
	return &EntitlementHandler{
		entitlement: entitlementService,
		logger:      logger,
	}
}

// RegisterRoutes registers entitlement routes on the provided mux.
func (h *EntitlementHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/entitlement/{userId}", h.GetEntitlement)
}

type entitlementResponse struct {
	UserID            string     `json:"userId"`
	IsPremium         bool       `json:"isPremium"`
	PremiumExpiryDate *time.Time `json:"premiumExpiryDate,omitempty"`
	PlanType          string     `json:"planType,omitempty"`
	LastPaymentID     string     `json:"lastPaymentId,omitempty"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// GetEntitlement returns the current entitlement record. Expiry is
// advisory: the handler reports it but never enforces it.
func (h *EntitlementHandler) GetEntitlement(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	ent, err := h.entitlement.GetEntitlement(r.Context(), userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	resp := entitlementResponse{
		UserID:        ent.UserID,
		IsPremium:     ent.IsPremium,
		PlanType:      string(ent.PlanType),
		LastPaymentID: ent.LastPaymentID,
		UpdatedAt:     ent.UpdatedAt,
	}
	if !ent.PremiumExpiry.IsZero() {
		resp.PremiumExpiryDate = &ent.PremiumExpiry
	}

	writeJSON(w, http.StatusOK, resp)
}
