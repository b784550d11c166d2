package scoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateProfileDeterministic(t *testing.T) {
	a := GenerateProfile("john.doe@email.com", 150)
	b := GenerateProfile("john.doe@email.com", 150)
	assert.Equal(t, a, b)
}

func TestProfileSeedHashesRawIdentity(t *testing.T) {
	assert.Equal(t, uint32(287), profileSeed("john.doe@email.com"))
	assert.Equal(t, uint32(660), profileSeed(" john.doe@email.com "))
}

func TestGenerateProfileRanges(t *testing.T) {
	for i := 0; i < 500; i++ {
		identity := fmt.Sprintf("customer%d@example.com", i)
		p := GenerateProfile(identity, float64(i))
		ranges, ok := profileRanges[p.Segment]
		if !ok {
			t.Fatalf("unknown segment %q", p.Segment)
		}
		assert.GreaterOrEqual(t, p.OrderHistory, ranges.orders[0])
		assert.LessOrEqual(t, p.OrderHistory, ranges.orders[1])
		assert.GreaterOrEqual(t, p.RefundRatio, ranges.refundRatio[0])
		assert.LessOrEqual(t, p.RefundRatio, ranges.refundRatio[1])
		assert.GreaterOrEqual(t, p.LoyaltyScore, ranges.loyalty[0])
		assert.LessOrEqual(t, p.LoyaltyScore, ranges.loyalty[1])
		assert.GreaterOrEqual(t, p.RiskSignals, ranges.riskSignals[0])
		assert.LessOrEqual(t, p.RiskSignals, ranges.riskSignals[1])
		if p.Segment == SegmentVIP {
			assert.Zero(t, p.RiskSignals)
		}
	}
}

func TestGenerateProfileHighValueFavoursVIP(t *testing.T) {
	base, high := 0, 0
	for i := 0; i < 2000; i++ {
		identity := fmt.Sprintf("shopper-%d@example.com", i)
		if GenerateProfile(identity, 50).Segment == SegmentVIP {
			base++
		}
		if GenerateProfile(identity, 500).Segment == SegmentVIP {
			high++
		}
	}
	assert.Greater(t, high, base)
}

func TestWeightedChoice(t *testing.T) {
	tests := []struct {
		u    float64
		want string
	}{
		{0, SegmentNew},
		{0.29, SegmentNew},
		{0.31, SegmentRegular},
		{0.69, SegmentRegular},
		{0.71, SegmentVIP},
		{0.95, SegmentProblematic},
	}
	for _, tc := range tests {
		if got := weightedChoice(tc.u, segments, baseSegmentWeights); got != tc.want {
			t.Fatalf("u=%.2f: expected %s got %s", tc.u, tc.want, got)
		}
	}
}
