package scoring

import (
	"fmt"
	"strconv"
)

// ComplianceBreakdown holds the ethical compliance sub-scores.
type ComplianceBreakdown struct {
	Fairness        int `json:"fairness"`
	BusinessImpact  int `json:"business_impact"`
	LegalCompliance int `json:"legal_compliance"`
	Transparency    int `json:"transparency"`
}

// ComplianceReport is the output of the ethical compliance scorer.
type ComplianceReport struct {
	Score           int                 `json:"score"`
	Breakdown       ComplianceBreakdown `json:"breakdown"`
	Recommendations []string            `json:"recommendations"`
	Failure         string              `json:"failure,omitempty"`
}

var ethicalBaseRanges = map[string][2]int{
	ResolutionFullRefund:    {70, 95},
	ResolutionPartialRefund: {60, 85},
	"Manual Review":         {50, 70},
	ResolutionDenyRefund:    {30, 60},
}

var defaultEthicalRange = [2]int{40, 70}

const neutralEthicalScore = 50

// Jitter bounds applied to each sub-score around the final score.
const (
	fairnessJitter       = 5
	businessImpactJitter = 10
	legalJitter          = 3
	transparencyJitter   = 2
)

// ScoreEthicalCompliance rates a proposed resolution. It is informational only
// and does not take part in the auto-resolution gate.
func ScoreEthicalCompliance(description, resolutionType string, amount float64) (report ComplianceReport) {
	defer func() {
		if rec := recover(); rec != nil {
			report = NeutralCompliance(FailureInternal)
		}
	}()
	if !validAmount(amount) {
		return NeutralCompliance(FailureMalformedTicket)
	}

	full := contentSeed(description, resolutionType, strconv.FormatFloat(amount, 'f', -1, 64))
	seed := int(full % 100)

	bounds, ok := ethicalBaseRanges[resolutionType]
	if !ok {
		bounds = defaultEthicalRange
	}
	score := seed%(bounds[1]-bounds[0]) + bounds[0]
	switch {
	case amount > 500:
		score -= 5
	case amount < 50:
		score += 10
	}
	score = clampInt(score, 20, 95)

	r := newRand(full)
	return ComplianceReport{
		Score: score,
		Breakdown: ComplianceBreakdown{
			Fairness:        clampInt(score+randInt(r, -fairnessJitter, fairnessJitter), 0, 100),
			BusinessImpact:  clampInt(score+randInt(r, -businessImpactJitter, businessImpactJitter), 0, 100),
			LegalCompliance: clampInt(score+randInt(r, -legalJitter, legalJitter), 0, 100),
			Transparency:    clampInt(score+randInt(r, -transparencyJitter, transparencyJitter), 0, 100),
		},
		Recommendations: []string{
			fmt.Sprintf("Score of %d/100 indicates %s ethical compliance", score, complianceTier(score)),
			"Consider customer history and context",
			"Document decision rationale clearly",
		},
	}
}

// NeutralCompliance is returned when a resolution could not be scored.
func NeutralCompliance(kind string) ComplianceReport {
	return ComplianceReport{
		Score: neutralEthicalScore,
		Breakdown: ComplianceBreakdown{
			Fairness:        neutralEthicalScore,
			BusinessImpact:  neutralEthicalScore,
			LegalCompliance: neutralEthicalScore,
			Transparency:    neutralEthicalScore,
		},
		Recommendations: []string{
			"Analysis failed - requires manual review",
			"Ensure proper documentation",
			"Follow company policies",
		},
		Failure: kind,
	}
}

func complianceTier(score int) string {
	switch {
	case score > 80:
		return "high"
	case score > 60:
		return "moderate"
	default:
		return "low"
	}
}
