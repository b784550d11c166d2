package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"clarity-disputes/backend/internal/audit"
	"clarity-disputes/backend/internal/scoring"
	"clarity-disputes/backend/internal/store"
)

// Execution log actions.
const (
	ActionEvaluation           = "evaluation"
	ActionAutoResolution       = "auto_resolution"
	ActionAutoResolutionFailed = "auto_resolution_failed"
)

// Auto-resolution ceilings.
const (
	lowRiskMinScore     = 80
	lowRiskMaxAmount    = 50.0
	lowRiskConfidence   = 0.9
	mediumRiskMinScore  = 85
	mediumRiskMaxAmount = 100.0
	mediumConfidence    = 0.7
)

var planSteps = []string{
	"Send resolution communication to customer",
	"Process refund/adjustment if applicable",
	"Update ticket status to resolved",
	"Log resolution in system",
}

const estimatedCompletion = "15 minutes"

// ExecutionPlan is the action sequence applied to an auto-resolved ticket.
type ExecutionPlan struct {
	ResolutionType      string   `json:"resolution_type"`
	Amount              float64  `json:"amount"`
	Reasoning           string   `json:"reasoning"`
	NextSteps           []string `json:"next_steps"`
	EstimatedCompletion string   `json:"estimated_completion"`
}

// Decision is the outcome of the auto-resolution gate.
type Decision struct {
	AutoResolve     bool           `json:"auto_resolve"`
	RequiresHuman   bool           `json:"requires_human"`
	ConfidenceScore float64        `json:"confidence_score"`
	ExecutionPlan   *ExecutionPlan `json:"execution_plan"`
	Error           string         `json:"error,omitempty"`
}

// Evaluate applies the auto-resolution rule to an analysis. It never panics.
func Evaluate(a scoring.Analysis) (d Decision) {
	defer func() {
		if rec := recover(); rec != nil {
			d = Decision{RequiresHuman: true, Error: fmt.Sprint(rec)}
		}
	}()

	switch {
	case a.RiskLevel == scoring.RiskLow && a.RefundScore >= lowRiskMinScore && a.ProposedAmount <= lowRiskMaxAmount:
		d = Decision{AutoResolve: true, ConfidenceScore: lowRiskConfidence}
	case a.RiskLevel == scoring.RiskMedium && a.RefundScore >= mediumRiskMinScore && a.ProposedAmount <= mediumRiskMaxAmount:
		d = Decision{AutoResolve: true, ConfidenceScore: mediumConfidence}
	}
	d.RequiresHuman = !d.AutoResolve
	if d.AutoResolve {
		d.ExecutionPlan = &ExecutionPlan{
			ResolutionType:      a.ResolutionType,
			Amount:              a.ProposedAmount,
			Reasoning:           a.Reasoning,
			NextSteps:           append([]string(nil), planSteps...),
			EstimatedCompletion: estimatedCompletion,
		}
	}
	return d
}

// Executor gates analyses and applies approved plans to tickets.
type Executor struct {
	tickets  store.TicketStore
	recorder *audit.Recorder
	now      func() time.Time
}

// NewExecutor constructs an Executor.
func NewExecutor(tickets store.TicketStore, recorder *audit.Recorder) *Executor {
	return &Executor{tickets: tickets, recorder: recorder, now: time.Now}
}

// Evaluate runs the gate for t and appends one execution entry with the decision.
func (e *Executor) Evaluate(ctx context.Context, t store.Ticket, a scoring.Analysis) (Decision, error) {
	d := Evaluate(a)
	_, err := e.recorder.Append(ctx, t.ID, store.AgentExecution, ActionEvaluation, map[string]any{
		"execution_decision": d,
	})
	return d, err
}

// Apply marks the ticket auto_resolved with plan as its resolution. On a store
// failure the ticket is left as it was, an auto_resolution_failed entry is
// appended and the store error is returned with a nil ticket.
func (e *Executor) Apply(ctx context.Context, ticketID string, plan ExecutionPlan) (*store.Ticket, error) {
	status := store.StatusAutoResolved
	resolvedAt := e.now().UTC()
	updated, err := e.tickets.UpdateTicket(ctx, ticketID, store.TicketPatch{
		Status:     &status,
		Resolution: plan,
		ResolvedAt: &resolvedAt,
		Actor:      "execution_agent",
		Reason:     "auto-resolution plan applied",
	})
	if err != nil {
		logrus.WithField("ticket_id", ticketID).WithError(err).Warn("apply execution plan")
		if _, logErr := e.recorder.Append(ctx, ticketID, store.AgentExecution, ActionAutoResolutionFailed, map[string]any{
			"error": err.Error(),
		}); logErr != nil {
			logrus.WithField("ticket_id", ticketID).WithError(logErr).Error("record failed auto resolution")
		}
		return nil, err
	}

	_, err = e.recorder.Append(ctx, ticketID, store.AgentExecution, ActionAutoResolution, map[string]any{
		"execution_plan": plan,
		"status":         "completed",
	})
	return &updated, err
}
