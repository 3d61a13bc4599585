package repository

import (
	"context"
	"database/sql"
	"time"
)

// User is one row of the users table.
//
// The entitlement columns (is_premium, premium_expiry, plan_type,
// last_payment_id) are owned by the webhook flow. The remaining profile
// columns are written by other parts of the product and must survive
// entitlement updates untouched.
type User struct {
	UserID        string
	Email         sql.NullString
	DisplayName   sql.NullString
	IsPremium     bool
	PremiumExpiry sql.NullTime
	PlanType      sql.NullString
	LastPaymentID sql.NullString
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const getUserByID = `
SELECT user_id, email, display_name, is_premium, premium_expiry, plan_type, last_payment_id, created_at, updated_at
FROM users
WHERE user_id = $1
`

// GetUserByID fetches a single user row.
// Returns sql.ErrNoRows if the user does not exist.
func (q *Queries) GetUserByID(ctx context.Context, userID string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, userID)
	var u User
	err := row.Scan(
		&u.UserID,
		&u.Email,
		&u.DisplayName,
		&u.IsPremium,
		&u.PremiumExpiry,
		&u.PlanType,
		&u.LastPaymentID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

const upsertEntitlement = `
INSERT INTO users (user_id, is_premium, premium_expiry, plan_type, last_payment_id, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id) DO UPDATE SET
    is_premium = EXCLUDED.is_premium,
    premium_expiry = EXCLUDED.premium_expiry,
    plan_type = EXCLUDED.plan_type,
    last_payment_id = EXCLUDED.last_payment_id,
    updated_at = EXCLUDED.updated_at
RETURNING user_id, email, display_name, is_premium, premium_expiry, plan_type, last_payment_id, created_at, updated_at
`

// UpsertEntitlementParams are the entitlement columns written by a
// successful payment event.
type UpsertEntitlementParams struct {
	UserID        string
	IsPremium     bool
	PremiumExpiry time.Time
	PlanType      string
	LastPaymentID string
	UpdatedAt     time.Time
}

// UpsertEntitlement creates the user row on first payment, or updates
// only the entitlement columns of an existing row. Profile columns are
// deliberately not in the update list so a grant can never clobber them.
func (q *Queries) UpsertEntitlement(ctx context.Context, arg UpsertEntitlementParams) (User, error) {
	row := q.db.QueryRowContext(ctx, upsertEntitlement,
		arg.UserID,
		arg.IsPremium,
		arg.PremiumExpiry,
		arg.PlanType,
		arg.LastPaymentID,
		arg.UpdatedAt,
	)
	var u User
	err := row.Scan(
		&u.UserID,
		&u.Email,
		&u.DisplayName,
		&u.IsPremium,
		&u.PremiumExpiry,
		&u.PlanType,
		&u.LastPaymentID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}
