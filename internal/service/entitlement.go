package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v79"

	"github.com/vfarias/evapay/internal/domain"
	"github.com/vfarias/evapay/internal/metrics"
	"github.com/vfarias/evapay/internal/repository"
)

// EntitlementStore is the subset of repository.Queries the entitlement
// flow needs. Defined here so tests can substitute a fake store.
type EntitlementStore interface {
	UpsertEntitlement(ctx context.Context, arg repository.UpsertEntitlementParams) (repository.User, error)
	GetUserByID(ctx context.Context, userID string) (repository.User, error)
}

// EntitlementService applies verified payment events to the persisted
// premium-access record.
type EntitlementService interface {
	// ApplySucceededPayment grants or refreshes premium access for the
	// user named in the event's metadata.
	//
	// Returns domain.EINVALID when the event carries no usable user or
	// plan metadata; such events must not grant access. Returns
	// domain.EINTERNAL on store failure. The webhook handler logs
	// either outcome and still acknowledges the event.
	ApplySucceededPayment(ctx context.Context, event stripe.Event) error

	// GetEntitlement reads the persisted entitlement record.
	// Returns domain.ENOTFOUND if no payment has ever been recorded
	// for this user.
	GetEntitlement(ctx context.Context, userID string) (*domain.Entitlement, error)
}

// entitlementService is the concrete implementation of EntitlementService.
type entitlementService struct {
	store  EntitlementStore
	logger *slog.Logger
	now    func() time.Time
}

// NewEntitlementService creates a new EntitlementService.
func NewEntitlementService(store EntitlementStore, logger *slog.Logger) EntitlementService {
	return &entitlementService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (s *entitlementService) ApplySucceededPayment(ctx context.Context, event stripe.Event) error {
	const op = "EntitlementService.ApplySucceededPayment"

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return domain.Wrap(err, domain.EINVALID, op, "Failed to parse payment intent from event")
	}

	userID := intent.Metadata["user_id"]
	planID := intent.Metadata["plan_id"]

	// A payment without an attributable user or plan is unusable for
	// entitlement purposes (a dashboard test or a misconfigured
	// client). It must not silently grant access to anyone.
	if userID == "" || userID == domain.AnonymousUserID {
		return domain.Invalid(op, "Payment event carries no usable user ID")
	}
	if planID == "" {
		return domain.Invalid(op, "Payment event carries no plan ID")
	}

	plan, err := domain.ResolvePlan(domain.PlanID(planID))
	if err != nil {
		return domain.Wrap(err, domain.EINVALID, op, "Payment event names an unknown plan")
	}

	now := s.now()
	// Expiry is recomputed from now on every event, so a duplicate
	// delivery resets rather than extends the window.
	expiry := now.AddDate(0, 0, plan.DurationDays)

	user, err := s.store.UpsertEntitlement(ctx, repository.UpsertEntitlementParams{
		UserID:        userID,
		IsPremium:     true,
		PremiumExpiry: expiry,
		PlanType:      string(plan.ID),
		LastPaymentID: intent.ID,
		UpdatedAt:     now,
	})
	if err != nil {
		metrics.EntitlementStoreFailures.Inc()
		return domain.Internal(err, op, "Failed to persist entitlement")
	}

	metrics.EntitlementGrantsTotal.WithLabelValues(string(plan.ID)).Inc()
	s.logger.Info("premium entitlement granted",
		"user_id", user.UserID,
		"plan", plan.ID,
		"payment_id", intent.ID,
		"order_id", intent.Metadata["order_id"],
		"expires", expiry,
	)
	return nil
}

func (s *entitlementService) GetEntitlement(ctx context.Context, userID string) (*domain.Entitlement, error) {
	const op = "EntitlementService.GetEntitlement"

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", userID)
		}
		return nil, domain.Internal(err, op, "Failed to read entitlement")
	}

	ent := &domain.Entitlement{
		UserID:        user.UserID,
		IsPremium:     user.IsPremium,
		PlanType:      domain.PlanID(user.PlanType.String),
		LastPaymentID: user.LastPaymentID.String,
		UpdatedAt:     user.UpdatedAt,
	}
	if user.PremiumExpiry.Valid {
		ent.PremiumExpiry = user.PremiumExpiry.Time
	}
	return ent, nil
}
