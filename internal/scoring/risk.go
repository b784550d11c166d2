package scoring

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"clarity-disputes/backend/internal/match"
	"clarity-disputes/backend/internal/store"
)

// Risk levels.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Analysis methods identify which path produced an Analysis.
const (
	MethodHeuristic     = "heuristic"
	MethodBasicFallback = "basic_fallback"
	MethodRemote        = "openai"
)

// Failure kinds carried by fallback analyses.
const (
	FailureMalformedTicket = "malformed_ticket"
	FailureInternal        = "internal_failure"
)

const (
	minRefundScore = 10
	maxRefundScore = 95
)

// DisposableMarkers flag identities hosted on throwaway mail providers.
var DisposableMarkers = []string{"temp", "10min", "guerrilla"}

var categoryRisk = map[string]float64{
	store.CategoryProductDefect: 0.3,
	store.CategoryShipping:      0.2,
	store.CategoryBilling:       0.6,
	store.CategoryService:       0.4,
}

const defaultCategoryRisk = 0.5

// Analysis is the scored proposal for one ticket.
type Analysis struct {
	RefundScore    int     `json:"refund_score"`
	EthicalScore   int     `json:"ethical_score"`
	Decision       string  `json:"decision"`
	ResolutionType string  `json:"resolution_type"`
	ProposedAmount float64 `json:"proposed_amount"`
	RiskLevel      string  `json:"risk_level"`
	Reasoning      string  `json:"reasoning"`
	AnalysisMethod string  `json:"analysis_method"`
	Failure        string  `json:"failure,omitempty"`
}

// RiskAssessment is the intermediate risk breakdown behind an Analysis.
type RiskAssessment struct {
	EmailRiskFactors int     `json:"email_risk_factors"`
	CategoryRisk     float64 `json:"category_risk"`
	AmountRisk       float64 `json:"amount_risk"`
	TotalRisk        float64 `json:"total_risk"`
	Level            string  `json:"risk_level"`
	ScoreRange       [2]int  `json:"score_range"`
}

// ErrMalformedTicket is returned by ValidateTicket for tickets the analyzer cannot score.
var ErrMalformedTicket = errors.New("malformed ticket")

// ValidateTicket checks the fields the analyzer depends on.
func ValidateTicket(t store.Ticket) error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrMalformedTicket)
	}
	if strings.TrimSpace(t.CustomerEmail) == "" {
		return fmt.Errorf("%w: missing customer identity", ErrMalformedTicket)
	}
	if !validAmount(t.DisputeValue) {
		return fmt.Errorf("%w: invalid dispute value %v", ErrMalformedTicket, t.DisputeValue)
	}
	return nil
}

// AssessRisk computes the risk breakdown for a ticket.
func AssessRisk(t store.Ticket) RiskAssessment {
	identity := match.NormalizeIdentity(t.CustomerEmail)

	factors := 0
	if identity.HasPlus || len(identity.Local) < 4 {
		factors++
	}
	if identity.Dots > 2 {
		factors++
	}
	if identity.ContainsAny(DisposableMarkers) {
		factors += 2
	}

	base, ok := categoryRisk[store.NormalizeCategory(t.Category)]
	if !ok {
		base = defaultCategoryRisk
	}
	amountRisk := AmountRisk(t.DisputeValue)
	total := base + float64(factors)*0.15 + amountRisk

	a := RiskAssessment{
		EmailRiskFactors: factors,
		CategoryRisk:     base,
		AmountRisk:       amountRisk,
		TotalRisk:        total,
	}
	switch {
	case total > 0.7:
		a.Level, a.ScoreRange = RiskHigh, [2]int{20, 50}
	case total > 0.4:
		a.Level, a.ScoreRange = RiskMedium, [2]int{45, 75}
	default:
		a.Level, a.ScoreRange = RiskLow, [2]int{65, 95}
	}
	return a
}

// AmountRisk returns the tiered risk contribution of the dispute value.
func AmountRisk(value float64) float64 {
	switch {
	case value > 500:
		return 0.4
	case value > 200:
		return 0.2
	case value > 100:
		return 0.1
	default:
		return 0
	}
}

// Analyze scores a ticket deterministically: the same id, identity, amount,
// category, and description always produce the same Analysis. Tickets that
// cannot be scored get a Manual Review fallback instead of an error.
func Analyze(t store.Ticket) (result Analysis) {
	defer func() {
		if rec := recover(); rec != nil {
			result = FallbackAnalysis(t, FailureInternal)
		}
	}()
	if err := ValidateTicket(t); err != nil {
		return FallbackAnalysis(t, FailureMalformedTicket)
	}

	r := newRand(ticketSeed(t))
	risk := AssessRisk(t)

	score := randInt(r, risk.ScoreRange[0], risk.ScoreRange[1])
	score += categoryAdjustment(r, store.NormalizeCategory(t.Category), strings.ToLower(t.Description))
	score = clampInt(score, minRefundScore, maxRefundScore)

	outcome := Decide(score, t.DisputeValue, r)
	return Analysis{
		RefundScore:    score,
		EthicalScore:   score,
		Decision:       outcome.Decision,
		ResolutionType: outcome.ResolutionType,
		ProposedAmount: outcome.ProposedAmount,
		RiskLevel:      risk.Level,
		Reasoning:      buildReasoning(risk.Level, t.DisputeValue, store.NormalizeCategory(t.Category), score),
		AnalysisMethod: MethodHeuristic,
	}
}

// FallbackAnalysis is the safe default for tickets the analyzer could not score:
// Manual Review with no proposed amount. It is seeded from the ticket so repeated
// calls still agree with each other.
func FallbackAnalysis(t store.Ticket, kind string) Analysis {
	r := newRand(ticketSeed(t))
	score := randInt(r, 30, 80)
	levels := []string{RiskLow, RiskMedium, RiskHigh}
	return Analysis{
		RefundScore:    score,
		EthicalScore:   score,
		Decision:       DecisionManualReview,
		ResolutionType: ResolutionManualReview,
		ProposedAmount: 0,
		RiskLevel:      levels[r.Intn(len(levels))],
		Reasoning:      "System analysis - requires human review",
		AnalysisMethod: MethodBasicFallback,
		Failure:        kind,
	}
}

// PolicyRand returns the generator an analysis of t draws from, positioned
// after the score draws. Remote analyses use it to apply the same policy.
func PolicyRand(t store.Ticket) *rand.Rand {
	r := newRand(ticketSeed(t))
	risk := AssessRisk(t)
	_ = randInt(r, risk.ScoreRange[0], risk.ScoreRange[1])
	_ = categoryAdjustment(r, store.NormalizeCategory(t.Category), strings.ToLower(t.Description))
	return r
}

// ClampRefundScore bounds a score to the range every analysis must respect.
func ClampRefundScore(score int) int {
	return clampInt(score, minRefundScore, maxRefundScore)
}

func ticketSeed(t store.Ticket) uint32 {
	return contentSeed(t.ID, t.CustomerEmail) % 1000
}

func categoryAdjustment(r *rand.Rand, category, description string) int {
	switch category {
	case store.CategoryProductDefect:
		return randInt(r, -5, 15)
	case store.CategoryBilling:
		if strings.Contains(description, "unauthorized") {
			return randInt(r, 10, 20)
		}
		return randInt(r, -10, 5)
	case store.CategoryShipping:
		if strings.Contains(description, "late") || strings.Contains(description, "delay") {
			return randInt(r, 5, 15)
		}
	}
	return 0
}

func buildReasoning(level string, value float64, category string, score int) string {
	var parts []string
	switch level {
	case RiskLow:
		parts = append(parts, "Low-risk customer profile")
	case RiskHigh:
		parts = append(parts, "High-risk indicators detected")
	}
	switch {
	case value > 300:
		parts = append(parts, "high-value transaction")
	case value < 50:
		parts = append(parts, "low-value dispute")
	}
	switch category {
	case store.CategoryProductDefect:
		parts = append(parts, "product quality issue")
	case store.CategoryBilling:
		parts = append(parts, "billing dispute")
	case store.CategoryShipping:
		parts = append(parts, "shipping/delivery issue")
	case store.CategoryService:
		parts = append(parts, "service quality concern")
	}
	if len(parts) == 0 {
		parts = append(parts, "standard dispute signals")
	}
	return "Based on " + strings.Join(parts, ", ") + ". Score: " + strconv.Itoa(score) + "/100."
}
