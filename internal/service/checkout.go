// Package service contains the business logic layer.
//
// Services orchestrate interactions between the payment provider, the
// database, and domain logic. They are responsible for:
// - Input validation
// - Business rule enforcement
// - Error translation (provider errors -> domain errors)
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vfarias/evapay/internal/billing"
	"github.com/vfarias/evapay/internal/domain"
	"github.com/vfarias/evapay/internal/metrics"
)

// CheckoutParams are the validated inputs for one checkout attempt.
type CheckoutParams struct {
	PlanID domain.PlanID
	Email  string
	UserID string
}

// CheckoutService assembles everything the mobile client needs to
// present a payment sheet: a payment intent, an ephemeral key, and the
// Stripe customer the intent is bound to.
type CheckoutService interface {
	// CreateCheckout resolves the plan, finds or creates the customer,
	// creates the payment intent, and issues an ephemeral key.
	//
	// Returns domain.EINVALID for an unrecognized plan (checked before
	// any provider call), domain.EPAYMENT when Stripe rejects the
	// creation request, and domain.EUNAVAILABLE on transport failures.
	CreateCheckout(ctx context.Context, params CheckoutParams) (*domain.CheckoutResult, error)
}

// checkoutService is the concrete implementation of CheckoutService.
type checkoutService struct {
	billing billing.Service
	logger  *slog.Logger
	now     func() time.Time
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(billingService billing.Service, logger *slog.Logger) CheckoutService {
	return &checkoutService{
		billing: billingService,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *checkoutService) CreateCheckout(ctx context.Context, params CheckoutParams) (*domain.CheckoutResult, error) {
	const op = "CheckoutService.CreateCheckout"

	// Resolve the plan before touching the provider. An unresolvable
	// plan must never reach intent creation: the amount charged is
	// always the catalog's, not the client's.
	plan, err := domain.ResolvePlan(params.PlanID)
	if err != nil {
		metrics.CheckoutsTotal.WithLabelValues(string(params.PlanID), "invalid_plan").Inc()
		return nil, err
	}

	cust, err := s.resolveCustomer(params.Email, params.UserID)
	if err != nil {
		metrics.CheckoutsTotal.WithLabelValues(string(plan.ID), "customer_error").Inc()
		return nil, domain.Unavailable(err, op, "Failed to resolve customer")
	}

	// orderID correlates this creation attempt with the webhook event
	// that later confirms it. Unique at human request rates; the
	// idempotency key below covers literal double-submits.
	orderID := fmt.Sprintf("premium_%s_%d", plan.ID, s.now().UnixMilli())

	intent, err := s.billing.CreatePaymentIntent(billing.IntentParams{
		AmountCents:    plan.AmountCents,
		Currency:       domain.Currency,
		CustomerID:     cust.ID,
		OrderID:        orderID,
		PlanID:         string(plan.ID),
		UserID:         params.UserID,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		metrics.CheckoutsTotal.WithLabelValues(string(plan.ID), "intent_error").Inc()
		if msg, rejected := billing.IsRejection(err); rejected {
			return nil, domain.PaymentRejected(err, op, msg)
		}
		return nil, domain.Unavailable(err, op, "Failed to create payment intent")
	}

	ephemeralKey, err := s.billing.CreateEphemeralKey(cust.ID)
	if err != nil {
		metrics.CheckoutsTotal.WithLabelValues(string(plan.ID), "key_error").Inc()
		return nil, domain.Unavailable(err, op, "Failed to issue ephemeral key")
	}

	metrics.CheckoutsTotal.WithLabelValues(string(plan.ID), "created").Inc()
	s.logger.Info("checkout created",
		"plan", plan.ID,
		"order_id", orderID,
		"intent_id", intent.ID,
		"customer_id", cust.ID,
		"amount", intent.Amount,
	)

	return &domain.CheckoutResult{
		PaymentIntentSecret: intent.ClientSecret,
		EphemeralKeySecret:  ephemeralKey,
		CustomerID:          cust.ID,
		BoletoURL:           intent.BoletoVoucherURL,
	}, nil
}

// resolveCustomer finds the existing Stripe customer for this email or
// creates one. Find-then-create is not atomic: two first-time requests
// with the same email can race and create duplicates. Accepted
// limitation; Stripe offers no find-or-create primitive.
func (s *checkoutService) resolveCustomer(email, userID string) (*billing.Customer, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	// Without an email there is nothing to match on; every such
	// checkout gets a fresh customer.
	if email == "" {
		return s.billing.CreateCustomer(email, userID)
	}

	cust, err := s.billing.FindCustomerByEmail(email)
	if err != nil {
		return nil, err
	}
	if cust != nil {
		// Existing customer is returned as-is. No metadata refresh:
		// provider-side edits must not be clobbered.
		return cust, nil
	}

	return s.billing.CreateCustomer(email, userID)
}
