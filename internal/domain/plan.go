// Package domain contains core business types and interfaces.
//
// This file defines the premium plan catalog. Plans are fixed at compile
// time: the amount a payment intent charges is always looked up here,
// never taken from the client.
package domain

// PlanID identifies a premium subscription plan.
type PlanID string

const (
	PlanMonthly PlanID = "monthly"
	PlanAnnual  PlanID = "annual"
)

// Currency is the fixed settlement currency for all plans.
// The app sells in a single market; there is no conversion.
const Currency = "brl"

// Plan describes a purchasable premium plan.
//
// AmountCents is the charge amount in centavos. DurationDays is how long
// one successful payment extends the user's premium access.
type Plan struct {
	ID           PlanID
	AmountCents  int64
	Description  string
	DurationDays int
}

// catalog is the static plan table. Amounts here are the single source
// of truth for what a checkout may charge.
var catalog = map[PlanID]Plan{
	PlanMonthly: {
		ID:           PlanMonthly,
		AmountCents:  1999,
		Description:  "monthly premium",
		DurationDays: 30,
	},
	PlanAnnual: {
		ID:           PlanAnnual,
		AmountCents:  19999,
		Description:  "annual premium",
		DurationDays: 365,
	},
}

// ResolvePlan returns the plan for the given ID.
// Returns an EINVALID error for any unrecognized plan ID; unknown plans
// never fall back to a default.
func ResolvePlan(id PlanID) (Plan, error) {
	plan, ok := catalog[id]
	if !ok {
		return Plan{}, Errorf(EINVALID, "plan.resolve", "unknown plan %q", id)
	}
	return plan, nil
}
