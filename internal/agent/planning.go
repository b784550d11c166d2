// Package agent holds the planning and execution steps of the dispute pipeline.
package agent

import (
	"context"

	"github.com/sirupsen/logrus"

	"clarity-disputes/backend/internal/ai"
	"clarity-disputes/backend/internal/audit"
	"clarity-disputes/backend/internal/match"
	"clarity-disputes/backend/internal/scoring"
	"clarity-disputes/backend/internal/store"
)

// Planning log actions.
const (
	ActionSmartAnalysis    = "smart_analysis"
	ActionRemoteAnalysis   = "openai_analysis"
	ActionFallbackAnalysis = "fallback_analysis"
)

// Planner drafts a resolution for a ticket. It asks the remote analyst when one is
// enabled and falls back to the deterministic analyzer on any failure.
type Planner struct {
	analyst  ai.Analyst
	recorder *audit.Recorder
}

// NewPlanner constructs a Planner. analyst may be nil.
func NewPlanner(analyst ai.Analyst, recorder *audit.Recorder) *Planner {
	return &Planner{analyst: analyst, recorder: recorder}
}

// RemoteEnabled reports whether the remote path will be attempted.
func (p *Planner) RemoteEnabled() bool {
	return p.analyst != nil && p.analyst.Enabled()
}

// Analyze returns the analysis for t and appends exactly one planning entry.
// The returned error only reports a failed audit append.
func (p *Planner) Analyze(ctx context.Context, t store.Ticket) (scoring.Analysis, error) {
	profile := scoring.GenerateProfile(t.CustomerEmail, t.DisputeValue)

	if !p.RemoteEnabled() || scoring.ValidateTicket(t) != nil {
		analysis := scoring.Analyze(t)
		_, err := p.recorder.Append(ctx, t.ID, store.AgentPlanning, ActionSmartAnalysis, map[string]any{
			"analysis":         analysis,
			"customer_profile": profile,
		})
		return analysis, err
	}

	result, remoteErr := p.analyst.Analyze(ctx, ai.AnalysisInput{Ticket: t, Profile: profile})
	if remoteErr != nil {
		analysis := scoring.Analyze(t)
		logrus.WithFields(logrus.Fields{
			"ticket_id": t.ID,
			"customer":  match.RedactEmail(t.CustomerEmail),
			"kind":      ai.KindOf(remoteErr),
		}).WithError(remoteErr).Warn("remote analysis failed, using deterministic analyzer")
		_, err := p.recorder.Append(ctx, t.ID, store.AgentPlanning, ActionFallbackAnalysis, map[string]any{
			"analysis":     analysis,
			"error":        remoteErr.Error(),
			"failure_kind": string(ai.KindOf(remoteErr)),
		})
		return analysis, err
	}

	analysis := fromRemote(t, result)
	_, err := p.recorder.Append(ctx, t.ID, store.AgentPlanning, ActionRemoteAnalysis, map[string]any{
		"analysis":         analysis,
		"customer_profile": profile,
	})
	return analysis, err
}

// fromRemote keeps the remote score, risk level and reasoning, and derives the
// decision and amount through the same policy as the deterministic path.
func fromRemote(t store.Ticket, result ai.Result) scoring.Analysis {
	score := scoring.ClampRefundScore(*result.RefundScore)
	outcome := scoring.Decide(score, t.DisputeValue, scoring.PolicyRand(t))
	return scoring.Analysis{
		RefundScore:    score,
		EthicalScore:   score,
		Decision:       outcome.Decision,
		ResolutionType: outcome.ResolutionType,
		ProposedAmount: outcome.ProposedAmount,
		RiskLevel:      result.RiskLevel,
		Reasoning:      result.Reasoning,
		AnalysisMethod: scoring.MethodRemote,
	}
}
