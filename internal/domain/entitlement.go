package domain

import "time"

// AnonymousUserID is the placeholder the mobile client sends before a
// user has signed in. A payment event carrying it cannot be attributed
// to an account and must never grant premium access.
const AnonymousUserID = "anonymous"

// Entitlement is the persisted premium-access record for one user.
//
// It is created implicitly on the first successful payment and refreshed
// on every subsequent one. Expiry is advisory data for the client; this
// service never flips IsPremium back to false.
type Entitlement struct {
	UserID        string
	IsPremium     bool
	PremiumExpiry time.Time
	PlanType      PlanID
	LastPaymentID string
	UpdatedAt     time.Time
}

// CheckoutResult is what the checkout endpoint returns to the client so
// it can drive the payment sheet.
type CheckoutResult struct {
	PaymentIntentSecret string
	EphemeralKeySecret  string
	CustomerID          string
	// BoletoURL is set only when the created intent already exposes a
	// hosted boleto voucher. Absent for card-only confirmations.
	BoletoURL string
}
