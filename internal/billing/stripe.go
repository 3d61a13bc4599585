// Package billing provides the Stripe integration for premium checkout.
package billing

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/ephemeralkey"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/webhook"
)

// ephemeralKeyAPIVersion is the Stripe API version ephemeral keys are
// pinned to. The response shape of this primitive changes between
// versions, so an unpinned call would break mobile clients on a
// provider-side upgrade. Must match the SDK's pinned version.
const ephemeralKeyAPIVersion = "2024-06-20"

// boletoExpiresAfterDays is how long an issued boleto voucher stays
// payable before it lapses.
const boletoExpiresAfterDays = 3

// Customer is the subset of the Stripe customer this service uses.
type Customer struct {
	ID    string
	Email string
}

// Intent is the subset of a created payment intent the checkout flow
// returns to the client.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	// BoletoVoucherURL is the hosted voucher page when the intent's
	// next action already carries one, otherwise empty.
	BoletoVoucherURL string
}

// IntentParams describes one payment-intent creation attempt.
type IntentParams struct {
	AmountCents int64
	Currency    string
	CustomerID  string
	// OrderID joins this creation attempt to the webhook event that
	// later confirms it.
	OrderID string
	PlanID  string
	UserID  string
	// IdempotencyKey guards against double-submission of the same
	// creation request.
	IdempotencyKey string
}

// Service defines the interface for payment provider operations.
type Service interface {
	// FindCustomerByEmail returns the most recent customer with this
	// exact email, or nil when none exists.
	FindCustomerByEmail(email string) (*Customer, error)

	// CreateCustomer creates a new customer keyed to the given email,
	// tagged with the app user ID.
	CreateCustomer(email, userID string) (*Customer, error)

	// CreatePaymentIntent submits one intent creation request.
	CreatePaymentIntent(params IntentParams) (*Intent, error)

	// CreateEphemeralKey issues a short-lived client-side credential
	// scoped to the given customer.
	CreateEphemeralKey(customerID string) (string, error)

	// VerifyWebhookSignature verifies the Stripe webhook signature over
	// the raw body and returns the parsed event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	webhookSecret string
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey authenticates Stripe API calls for the process lifetime.
// The webhookSecret verifies incoming webhook signatures.
func NewStripeService(secretKey, webhookSecret string) Service {
	stripe.Key = secretKey

	return &stripeService{
		webhookSecret: webhookSecret,
	}
}

func (s *stripeService) FindCustomerByEmail(email string) (*Customer, error) {
	params := &stripe.CustomerListParams{
		Email: stripe.String(email),
	}
	params.Limit = stripe.Int64(1)

	iter := customer.List(params)
	if iter.Next() {
		c := iter.Customer()
		return &Customer{ID: c.ID, Email: c.Email}, nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stripe list customers: %w", err)
	}

	return nil, nil
}

func (s *stripeService) CreateCustomer(email, userID string) (*Customer, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.AddMetadata("user_id", userID)
	params.AddMetadata("app", "eva-premium")

	c, err := customer.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create customer: %w", err)
	}
	return &Customer{ID: c.ID, Email: c.Email}, nil
}

func (s *stripeService) CreatePaymentIntent(p IntentParams) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.AmountCents),
		Currency: stripe.String(p.Currency),
		Customer: stripe.String(p.CustomerID),
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
			"boleto",
		}),
		PaymentMethodOptions: &stripe.PaymentIntentPaymentMethodOptionsParams{
			Boleto: &stripe.PaymentIntentPaymentMethodOptionsBoletoParams{
				ExpiresAfterDays: stripe.Int64(boletoExpiresAfterDays),
			},
			Card: &stripe.PaymentIntentPaymentMethodOptionsCardParams{
				RequestThreeDSecure: stripe.String(string(stripe.PaymentIntentPaymentMethodOptionsCardRequestThreeDSecureAutomatic)),
			},
		},
		// Boleto settles asynchronously, days after creation.
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodAutomaticAsync)),
	}
	params.AddMetadata("order_id", p.OrderID)
	params.AddMetadata("plan_id", p.PlanID)
	params.AddMetadata("user_id", p.UserID)
	if p.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(p.IdempotencyKey)
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}

	result := &Intent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
	}
	if intent.NextAction != nil && intent.NextAction.BoletoDisplayDetails != nil {
		result.BoletoVoucherURL = intent.NextAction.BoletoDisplayDetails.HostedVoucherURL
	}
	return result, nil
}

func (s *stripeService) CreateEphemeralKey(customerID string) (string, error) {
	params := &stripe.EphemeralKeyParams{
		Customer:      stripe.String(customerID),
		StripeVersion: stripe.String(ephemeralKeyAPIVersion),
	}
	key, err := ephemeralkey.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create ephemeral key: %w", err)
	}
	return key.Secret, nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}

// IsRejection reports whether err is a Stripe-side rejection of the
// request (bad input, declined card, invalid customer) as opposed to a
// transport or authentication failure. Rejections surface to the client
// as 400s; everything else is a 500.
func IsRejection(err error) (msg string, ok bool) {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return "", false
	}
	switch stripeErr.Type {
	case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest, stripe.ErrorTypeIdempotency:
		return stripeErr.Msg, true
	}
	return "", false
}
