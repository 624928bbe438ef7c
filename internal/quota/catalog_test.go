package quota_test

import (
	"testing"

	"github.com/burka/podpulse/internal/quota"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitsFor(t *testing.T) {
	tests := []struct {
		plan     quota.PlanID
		podcasts string
		analyses string
		charts   string
	}{
		{quota.PlanFree, "1", "1", "10"},
		{quota.PlanStarter, "5", "10", "50"},
		{quota.PlanPro, "20", "unlimited", "unlimited"},
		{quota.PlanAgency, "unlimited", "unlimited", "unlimited"},
		{"enterprise", "0", "0", "0"},
		{"", "0", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(string(tt.plan), func(t *testing.T) {
			limits := quota.LimitsFor(tt.plan)
			assert.Equal(t, tt.podcasts, limits.MaxPodcasts.String())
			assert.Equal(t, tt.analyses, limits.MaxAIAnalyses.String())
			assert.Equal(t, tt.charts, limits.MaxChartAccess.String())
		})
	}
}

func TestPlansOrderedByGenerosity(t *testing.T) {
	plans := quota.Plans()
	require.Equal(t, []quota.PlanID{quota.PlanFree, quota.PlanStarter, quota.PlanPro, quota.PlanAgency}, plans)

	// Every ceiling of a tier is at least as generous as the one below it.
	for i := 1; i < len(plans); i++ {
		lower, higher := quota.LimitsFor(plans[i-1]), quota.LimitsFor(plans[i])
		for _, a := range quota.Actions() {
			lc, _ := lower.Ceiling(a)
			hc, _ := higher.Ceiling(a)
			if hc.IsUnbounded() {
				continue
			}
			require.False(t, lc.IsUnbounded(), "%s %s", plans[i], a)
			lmax, _ := lc.Max()
			hmax, _ := hc.Max()
			assert.GreaterOrEqual(t, hmax, lmax, "%s %s", plans[i], a)
		}
		assert.Greater(t, plans[i].Rank(), plans[i-1].Rank())
	}
}

func TestPaidPlans(t *testing.T) {
	assert.Equal(t, []quota.PlanID{quota.PlanStarter, quota.PlanPro, quota.PlanAgency}, quota.PaidPlans())
	assert.False(t, quota.PlanFree.IsPaid())
	assert.False(t, quota.PlanID("gold").IsPaid())
	assert.False(t, quota.PlanID("gold").Known())
	assert.Equal(t, -1, quota.PlanID("gold").Rank())
}

func TestCanExport(t *testing.T) {
	assert.False(t, quota.PlanFree.CanExport())
	assert.True(t, quota.PlanStarter.CanExport())
	assert.True(t, quota.PlanPro.CanExport())
	assert.True(t, quota.PlanAgency.CanExport())
	assert.False(t, quota.PlanID("gold").CanExport())
}

func TestCeilingsFor(t *testing.T) {
	plans, ceilings, err := quota.CeilingsFor(quota.ActionAIAnalysis)
	require.NoError(t, err)
	require.Len(t, ceilings, len(plans))

	byPlan := make(map[string]*int64, len(plans))
	for i, p := range plans {
		byPlan[p] = ceilings[i]
	}
	require.NotNil(t, byPlan["free"])
	assert.Equal(t, int64(1), *byPlan["free"])
	assert.Equal(t, int64(10), *byPlan["starter"])
	assert.Nil(t, byPlan["pro"])
	assert.Nil(t, byPlan["agency"])

	_, _, err = quota.CeilingsFor("export_data")
	assert.ErrorIs(t, err, quota.ErrInvalidAction)
}

func TestParseAction(t *testing.T) {
	for _, a := range quota.Actions() {
		got, err := quota.ParseAction(string(a))
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}

	_, err := quota.ParseAction("delete_everything")
	assert.ErrorIs(t, err, quota.ErrInvalidAction)
}
