package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func assertBreakdownWithinJitter(t *testing.T, r ComplianceReport) {
	t.Helper()
	within := func(v, bound int) {
		t.Helper()
		assert.LessOrEqual(t, int(math.Abs(float64(v-r.Score))), bound)
	}
	within(r.Breakdown.Fairness, fairnessJitter)
	within(r.Breakdown.BusinessImpact, businessImpactJitter)
	within(r.Breakdown.LegalCompliance, legalJitter)
	within(r.Breakdown.Transparency, transparencyJitter)
}

func TestScoreEthicalComplianceDenyRefundSmallAmount(t *testing.T) {
	r := ScoreEthicalCompliance("ok", ResolutionDenyRefund, 20)
	assert.Empty(t, r.Failure)
	assert.GreaterOrEqual(t, r.Score, 40)
	assert.LessOrEqual(t, r.Score, 69)
	assertBreakdownWithinJitter(t, r)
	assert.Len(t, r.Recommendations, 3)
	assert.Contains(t, r.Recommendations[0], "ethical compliance")
}

func TestScoreEthicalComplianceRanges(t *testing.T) {
	tests := []struct {
		name           string
		resolution     string
		amount         float64
		minimum, upper int
	}{
		{"full refund large", ResolutionFullRefund, 1000, 65, 89},
		{"full refund mid", ResolutionFullRefund, 100, 70, 94},
		{"partial refund", ResolutionPartialRefund, 100, 60, 84},
		{"manual review", "Manual Review", 100, 50, 69},
		{"unknown", "Store Credit", 100, 40, 69},
		{"unknown small", "Store Credit", 10, 50, 79},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for _, desc := range []string{"late", "broken screen", "charged twice", ""} {
				r := ScoreEthicalCompliance(desc, tc.resolution, tc.amount)
				assert.GreaterOrEqual(t, r.Score, tc.minimum)
				assert.LessOrEqual(t, r.Score, tc.upper)
				assertBreakdownWithinJitter(t, r)
			}
		})
	}
}

func TestScoreEthicalComplianceDeterministic(t *testing.T) {
	a := ScoreEthicalCompliance("package lost", ResolutionPartialRefund, 75.5)
	b := ScoreEthicalCompliance("package lost", ResolutionPartialRefund, 75.5)
	assert.Equal(t, a, b)
}

func TestScoreEthicalComplianceInvalidAmount(t *testing.T) {
	r := ScoreEthicalCompliance("x", ResolutionFullRefund, math.Inf(1))
	assert.Equal(t, 50, r.Score)
	assert.Equal(t, ComplianceBreakdown{50, 50, 50, 50}, r.Breakdown)
	assert.Equal(t, FailureMalformedTicket, r.Failure)
}

func TestComplianceTier(t *testing.T) {
	assert.Equal(t, "high", complianceTier(81))
	assert.Equal(t, "moderate", complianceTier(80))
	assert.Equal(t, "moderate", complianceTier(61))
	assert.Equal(t, "low", complianceTier(60))
}
