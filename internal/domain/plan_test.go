package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePlan_Monthly(t *testing.T) {
	plan, err := ResolvePlan(PlanMonthly)
	require.NoError(t, err)

	assert.Equal(t, int64(1999), plan.AmountCents)
	assert.Equal(t, "monthly premium", plan.Description)
	assert.Equal(t, 30, plan.DurationDays)
}

func TestResolvePlan_Annual(t *testing.T) {
	plan, err := ResolvePlan(PlanAnnual)
	require.NoError(t, err)

	assert.Equal(t, int64(19999), plan.AmountCents)
	assert.Equal(t, "annual premium", plan.Description)
	assert.Equal(t, 365, plan.DurationDays)
}

func TestResolvePlan_Unknown(t *testing.T) {
	cases := []PlanID{"", "weekly", "Monthly", "premium"}

	for _, id := range cases {
		_, err := ResolvePlan(id)
		require.Error(t, err, "plan %q should not resolve", id)
		assert.Equal(t, EINVALID, ErrorCode(err))
	}
}
