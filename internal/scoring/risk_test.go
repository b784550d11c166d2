package scoring

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clarity-disputes/backend/internal/store"
)

func sampleTickets() []store.Ticket {
	categories := []string{store.CategoryProductDefect, store.CategoryShipping, store.CategoryBilling, store.CategoryService, "warranty"}
	emails := []string{"a@test.com", "john.doe@email.com", "amy+refunds@shop.example.co.uk", "x@temp.com", "grace.hopper@navy.mil", "bob@10minutemail.net"}
	amounts := []float64{0, 12.5, 40, 99.99, 150, 250, 420, 900, 5000}
	descriptions := []string{"package arrived late", "unauthorized subscription charge", "stopped working", "rude technician", ""}

	var out []store.Ticket
	i := 0
	for _, c := range categories {
		for _, e := range emails {
			for _, a := range amounts {
				out = append(out, store.Ticket{
					ID:            fmt.Sprintf("t-%d", i),
					CustomerEmail: e,
					DisputeValue:  a,
					Category:      c,
					Description:   descriptions[i%len(descriptions)],
				})
				i++
			}
		}
	}
	return out
}

func TestAnalyzeDeterministic(t *testing.T) {
	for _, ticket := range sampleTickets() {
		first := Analyze(ticket)
		second := Analyze(ticket)
		if first != second {
			t.Fatalf("ticket %s: analyses differ: %+v vs %+v", ticket.ID, first, second)
		}
	}
}

func TestAnalyzeBoundsAndPolicyConsistency(t *testing.T) {
	for _, ticket := range sampleTickets() {
		a := Analyze(ticket)
		require.Equal(t, MethodHeuristic, a.AnalysisMethod, ticket.ID)
		assert.GreaterOrEqual(t, a.RefundScore, 10, ticket.ID)
		assert.LessOrEqual(t, a.RefundScore, 95, ticket.ID)
		assert.GreaterOrEqual(t, a.ProposedAmount, 0.0, ticket.ID)
		assert.LessOrEqual(t, a.ProposedAmount, ticket.DisputeValue, ticket.ID)
		assert.Equal(t, a.RefundScore, a.EthicalScore)

		switch {
		case a.RefundScore >= 80:
			assert.Equal(t, DecisionApprove, a.Decision)
			assert.Equal(t, ResolutionFullRefund, a.ResolutionType)
			assert.InDelta(t, ticket.DisputeValue, a.ProposedAmount, 0.005)
		case a.RefundScore >= 60:
			assert.Equal(t, DecisionApprove, a.Decision)
			assert.Equal(t, ResolutionPartialRefund, a.ResolutionType)
			assert.GreaterOrEqual(t, a.ProposedAmount, roundCents(ticket.DisputeValue*0.3)-0.01)
			assert.LessOrEqual(t, a.ProposedAmount, roundCents(ticket.DisputeValue*0.7)+0.01)
		case a.RefundScore >= 40:
			assert.Equal(t, DecisionManualReview, a.Decision)
			assert.Zero(t, a.ProposedAmount)
		default:
			assert.Equal(t, DecisionReject, a.Decision)
			assert.Equal(t, ResolutionDenyRefund, a.ResolutionType)
			assert.Zero(t, a.ProposedAmount)
		}
	}
}

func TestAnalyzeLowRiskShippingDelay(t *testing.T) {
	ticket := store.Ticket{
		ID:            "scenario-a",
		CustomerEmail: "a@test.com",
		DisputeValue:  40,
		Category:      store.CategoryShipping,
		Description:   "package arrived late, requesting delay compensation",
	}
	risk := AssessRisk(ticket)
	assert.Equal(t, 0.2, risk.CategoryRisk)
	assert.Zero(t, risk.AmountRisk)
	assert.Equal(t, RiskLow, risk.Level)

	a := Analyze(ticket)
	assert.Equal(t, RiskLow, a.RiskLevel)
	assert.GreaterOrEqual(t, a.RefundScore, 70)
	assert.Equal(t, DecisionApprove, a.Decision)
	assert.Contains(t, a.Reasoning, "Low-risk customer profile")
	assert.Contains(t, a.Reasoning, "low-value dispute")
	assert.Contains(t, a.Reasoning, "shipping/delivery issue")
}

func TestAnalyzeHighRiskUnauthorizedBilling(t *testing.T) {
	ticket := store.Ticket{
		ID:            "scenario-b",
		CustomerEmail: "x@temp.com",
		DisputeValue:  900,
		Category:      store.CategoryBilling,
		Description:   "unauthorized subscription charge",
	}
	risk := AssessRisk(ticket)
	assert.GreaterOrEqual(t, risk.EmailRiskFactors, 2)
	assert.Equal(t, 0.4, risk.AmountRisk)
	assert.Greater(t, risk.TotalRisk, 0.7)

	a := Analyze(ticket)
	assert.Equal(t, RiskHigh, a.RiskLevel)
	assert.GreaterOrEqual(t, a.RefundScore, 30)
	assert.LessOrEqual(t, a.RefundScore, 70)
	assert.Contains(t, a.Reasoning, "High-risk indicators detected")
	assert.Contains(t, a.Reasoning, "high-value transaction")
}

func TestAssessRiskEmailFactors(t *testing.T) {
	tests := []struct {
		email   string
		factors int
	}{
		{"jane.smith@example.com", 0},
		{"bob@example.com", 1},
		{"jane+shop@example.com", 1},
		{"first.middle.last@mail.example.com", 1},
		{"someone@guerrillamail.com", 2},
		{"x@temp.mail.example.com", 4},
	}
	for _, tc := range tests {
		t.Run(tc.email, func(t *testing.T) {
			risk := AssessRisk(store.Ticket{CustomerEmail: tc.email, Category: store.CategoryService})
			if risk.EmailRiskFactors != tc.factors {
				t.Fatalf("expected %d factors got %d", tc.factors, risk.EmailRiskFactors)
			}
		})
	}
}

func TestAssessRiskUnknownCategoryUsesDefault(t *testing.T) {
	risk := AssessRisk(store.Ticket{CustomerEmail: "jane.smith@example.com", Category: "warranty", DisputeValue: 150})
	assert.Equal(t, 0.5, risk.CategoryRisk)
	assert.Equal(t, 0.1, risk.AmountRisk)
	assert.Equal(t, RiskMedium, risk.Level)
}

func TestAnalyzeMalformedTicketFallsBack(t *testing.T) {
	tests := []struct {
		name   string
		ticket store.Ticket
	}{
		{"missing identity", store.Ticket{ID: "t-1", DisputeValue: 10}},
		{"negative amount", store.Ticket{ID: "t-2", CustomerEmail: "a@b.com", DisputeValue: -5}},
		{"nan amount", store.Ticket{ID: "t-3", CustomerEmail: "a@b.com", DisputeValue: math.NaN()}},
		{"missing id", store.Ticket{CustomerEmail: "a@b.com", DisputeValue: 10}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := Analyze(tc.ticket)
			assert.Equal(t, MethodBasicFallback, a.AnalysisMethod)
			assert.Equal(t, FailureMalformedTicket, a.Failure)
			assert.Equal(t, DecisionManualReview, a.Decision)
			assert.Equal(t, ResolutionManualReview, a.ResolutionType)
			assert.Zero(t, a.ProposedAmount)
			assert.GreaterOrEqual(t, a.RefundScore, 30)
			assert.LessOrEqual(t, a.RefundScore, 80)
			assert.Contains(t, []string{RiskLow, RiskMedium, RiskHigh}, a.RiskLevel)
			assert.Equal(t, a, Analyze(tc.ticket))
		})
	}
}

func TestPolicyRandMatchesAnalysis(t *testing.T) {
	ticket := store.Ticket{ID: "policy", CustomerEmail: "jane.smith@example.com", DisputeValue: 120, Category: store.CategoryProductDefect}
	a := Analyze(ticket)
	outcome := Decide(a.RefundScore, ticket.DisputeValue, PolicyRand(ticket))
	assert.Equal(t, a.Decision, outcome.Decision)
	assert.Equal(t, a.ProposedAmount, outcome.ProposedAmount)
}
