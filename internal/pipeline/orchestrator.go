// Package pipeline sequences analysis, gating and execution for one dispute ticket.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"clarity-disputes/backend/internal/agent"
	"clarity-disputes/backend/internal/ai"
	"clarity-disputes/backend/internal/audit"
	"clarity-disputes/backend/internal/lock"
	"clarity-disputes/backend/internal/match"
	"clarity-disputes/backend/internal/notify"
	"clarity-disputes/backend/internal/scoring"
	"clarity-disputes/backend/internal/store"
	"clarity-disputes/backend/internal/util"
)

// Audit actions written by the orchestrator itself.
const (
	ActionReprocessRejected    = "reprocess_rejected"
	ActionEvaluationSkipped    = "evaluation_skipped"
	ActionHumanReviewRequested = "human_review_requested"
	ActionHumanDecision        = "human_decision"
)

const actor = "pipeline"

// Notifier receives the pipeline's outbound notifications.
type Notifier interface {
	NotifyHighRisk(ctx context.Context, t store.Ticket) notify.AlertResult
	SendResolutionUpdate(ctx context.Context, t store.Ticket, resolutionType string) bool
}

// Deps wires an Orchestrator. Analyst, Locker and Notifier are optional.
type Deps struct {
	Tickets     store.TicketStore
	Recorder    *audit.Recorder
	Analyst     ai.Analyst
	Locker      lock.Locker
	Notifier    Notifier
	LockTimeout time.Duration
}

// Orchestrator runs the dispute decision pipeline.
type Orchestrator struct {
	tickets     store.TicketStore
	recorder    *audit.Recorder
	planner     *agent.Planner
	executor    *agent.Executor
	locker      lock.Locker
	notifier    Notifier
	lockTimeout time.Duration
	now         func() time.Time
}

// New constructs an Orchestrator.
func New(deps Deps) *Orchestrator {
	locker := deps.Locker
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	timeout := deps.LockTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Orchestrator{
		tickets:     deps.Tickets,
		recorder:    deps.Recorder,
		planner:     agent.NewPlanner(deps.Analyst, deps.Recorder),
		executor:    agent.NewExecutor(deps.Tickets, deps.Recorder),
		locker:      locker,
		notifier:    deps.Notifier,
		lockTimeout: timeout,
		now:         time.Now,
	}
}

// Result is the composite outcome of one ProcessTicket call. On failure Error is
// set; the other fields carry whatever was produced before the failure.
type Result struct {
	TicketID          string              `json:"ticket_id"`
	Analysis          *scoring.Analysis   `json:"analysis,omitempty"`
	ExecutionDecision *agent.Decision     `json:"execution_decision,omitempty"`
	Status            store.Status        `json:"status,omitempty"`
	Alert             *notify.AlertResult `json:"alert,omitempty"`
	DurationMS        int64               `json:"duration_ms"`
	Error             *Error              `json:"error,omitempty"`
}

// ProcessTicket runs the pipeline for one ticket. It never panics and always
// returns a Result; failures are reported through Result.Error.
func (o *Orchestrator) ProcessTicket(ctx context.Context, ticketID string) (res Result) {
	timer := util.StartStopwatch()
	res.TicketID = ticketID
	defer func() {
		if rec := recover(); rec != nil {
			logrus.WithField("ticket_id", ticketID).Errorf("pipeline panic before lock: %v", rec)
			res.Error = newError(KindInternalFailure, "unexpected failure: %v", rec)
		}
		res.DurationMS = timer.ElapsedMs()
	}()

	unlock, err := o.acquire(ctx, ticketID)
	if err != nil {
		res.Error = newError(KindInternalFailure, "lock ticket: %v", err)
		return res
	}
	defer unlock()
	// Runs before unlock, so the hand-off still holds the ticket lock.
	defer func() {
		if rec := recover(); rec != nil {
			logrus.WithField("ticket_id", ticketID).Errorf("pipeline panic: %v", rec)
			res.Error = newError(KindInternalFailure, "unexpected failure: %v", rec)
			if status := o.handOff(ctx, ticketID, "pipeline failure"); status != "" {
				res.Status = status
			}
		}
	}()

	ticket, err := o.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			res.Error = newError(KindNotFound, "ticket %s not found", ticketID)
		} else {
			res.Error = newError(KindInternalFailure, "load ticket: %v", err)
		}
		return res
	}
	res.Status = ticket.Status

	if ticket.Status.Terminal() {
		o.rejectTerminal(ctx, ticket)
		res.Error = newError(KindAlreadyResolved, "ticket %s is already %s", ticket.ID, ticket.Status)
		return res
	}

	fields := logrus.Fields{"ticket_id": ticket.ID, "customer": match.RedactEmail(ticket.CustomerEmail)}

	if ticket.Status == store.StatusPending {
		processing := store.StatusProcessing
		ticket, err = o.tickets.UpdateTicket(ctx, ticket.ID, store.TicketPatch{
			Status: &processing,
			Actor:  actor,
			Reason: "analysis started",
		})
		if err != nil {
			res.Error = newError(KindInternalFailure, "start processing: %v", err)
			return res
		}
		res.Status = ticket.Status
	}

	analysis, err := o.planner.Analyze(ctx, ticket)
	res.Analysis = &analysis
	if err != nil {
		res.Error = newError(KindAnalysisFailure, "record analysis: %v", err)
		res.Status = o.handOff(ctx, ticket.ID, "analysis could not be recorded")
		return res
	}

	ethical := analysis.EthicalScore
	risk := analysis.RiskLevel
	ticket, err = o.tickets.UpdateTicket(ctx, ticket.ID, store.TicketPatch{
		AIProposal:   analysis,
		EthicalScore: &ethical,
		RiskLevel:    &risk,
	})
	if err != nil {
		res.Error = newError(KindInternalFailure, "persist analysis: %v", err)
		res.Status = o.handOff(ctx, ticketID, "analysis could not be persisted")
		return res
	}

	decision, err := o.executor.Evaluate(ctx, ticket, analysis)
	res.ExecutionDecision = &decision
	if err != nil {
		logrus.WithFields(fields).WithError(err).Warn("record evaluation")
	}

	if decision.AutoResolve && decision.ExecutionPlan != nil {
		applied, err := o.executor.Apply(ctx, ticket.ID, *decision.ExecutionPlan)
		if applied == nil {
			res.Error = newError(KindExecutionFailure, "apply resolution: %v", err)
			res.Status = o.handOff(ctx, ticket.ID, "auto-resolution failed")
			return res
		}
		if err != nil {
			logrus.WithFields(fields).WithError(err).Warn("record auto resolution")
		}
		res.Status = applied.Status
		logrus.WithFields(fields).WithField("confidence", decision.ConfidenceScore).Info("ticket auto-resolved")
		return res
	}

	review := store.StatusPendingHumanReview
	required := true
	ticket, err = o.tickets.UpdateTicket(ctx, ticket.ID, store.TicketPatch{
		Status:              &review,
		HumanReviewRequired: &required,
		Actor:               actor,
		Reason:              "routed to human review",
	})
	if err != nil {
		res.Error = newError(KindInternalFailure, "route to human review: %v", err)
		return res
	}
	res.Status = ticket.Status

	detail := map[string]any{"risk_level": analysis.RiskLevel, "refund_score": analysis.RefundScore}
	if analysis.RiskLevel == scoring.RiskHigh && o.notifier != nil {
		alert := o.notifier.NotifyHighRisk(ctx, ticket)
		res.Alert = &alert
		detail["alert"] = alert
	}
	if _, err := o.recorder.Append(ctx, ticket.ID, store.AgentExecution, ActionHumanReviewRequested, detail); err != nil {
		logrus.WithFields(fields).WithError(err).Warn("record human review request")
	}
	logrus.WithFields(fields).WithField("risk_level", analysis.RiskLevel).Info("ticket routed to human review")
	return res
}

func (o *Orchestrator) acquire(ctx context.Context, ticketID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, o.lockTimeout)
	defer cancel()
	return o.locker.Lock(lockCtx, ticketID)
}

func (o *Orchestrator) rejectTerminal(ctx context.Context, t store.Ticket) {
	fields := logrus.Fields{"ticket_id": t.ID, "status": t.Status}
	if _, err := o.recorder.Append(ctx, t.ID, store.AgentPlanning, ActionReprocessRejected, map[string]any{
		"status": t.Status,
		"reason": "ticket already resolved",
	}); err != nil {
		logrus.WithFields(fields).WithError(err).Warn("record reprocess rejection")
	}
	if _, err := o.recorder.Append(ctx, t.ID, store.AgentExecution, ActionEvaluationSkipped, map[string]any{
		"status": t.Status,
	}); err != nil {
		logrus.WithFields(fields).WithError(err).Warn("record skipped evaluation")
	}
	logrus.WithFields(fields).Info("reprocess of resolved ticket rejected")
}

// handOff moves a ticket left in processing to human review and returns its status.
func (o *Orchestrator) handOff(ctx context.Context, ticketID, reason string) store.Status {
	current, err := o.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return ""
	}
	if current.Status != store.StatusProcessing {
		return current.Status
	}
	review := store.StatusPendingHumanReview
	required := true
	updated, err := o.tickets.UpdateTicket(ctx, ticketID, store.TicketPatch{
		Status:              &review,
		HumanReviewRequired: &required,
		Actor:               actor,
		Reason:              reason,
	})
	if err != nil {
		logrus.WithField("ticket_id", ticketID).WithError(err).Error("hand off ticket to human review")
		return current.Status
	}
	return updated.Status
}

// Human decisions.
const (
	DecisionApprove  = "approve"
	DecisionOverride = "override"
)

// OverrideResolution replaces the proposed resolution on an override.
type OverrideResolution struct {
	ResolutionType string  `json:"resolution_type"`
	Amount         float64 `json:"amount"`
	Reasoning      string  `json:"reasoning,omitempty"`
}

// HumanDecisionInput is a reviewer's verdict on a ticket.
type HumanDecisionInput struct {
	Decision           string              `json:"decision"`
	Comments           string              `json:"comments"`
	Reviewer           string              `json:"reviewer,omitempty"`
	OverrideResolution *OverrideResolution `json:"override_resolution,omitempty"`
}

type humanDecisionRecord struct {
	Decision           string              `json:"decision"`
	Comments           string              `json:"comments"`
	Reviewer           string              `json:"reviewer,omitempty"`
	OverrideResolution *OverrideResolution `json:"override_resolution,omitempty"`
	Timestamp          time.Time           `json:"timestamp"`
}

// HumanDecision resolves a ticket on a reviewer's behalf.
func (o *Orchestrator) HumanDecision(ctx context.Context, ticketID string, in HumanDecisionInput) (store.Ticket, error) {
	switch in.Decision {
	case DecisionApprove:
	case DecisionOverride:
		if in.OverrideResolution == nil || in.OverrideResolution.ResolutionType == "" {
			return store.Ticket{}, newError(KindInvalidRequest, "override requires override_resolution.resolution_type")
		}
		if in.OverrideResolution.Amount < 0 {
			return store.Ticket{}, newError(KindInvalidRequest, "override amount must not be negative")
		}
	default:
		return store.Ticket{}, newError(KindInvalidRequest, "decision must be %q or %q", DecisionApprove, DecisionOverride)
	}

	unlock, err := o.acquire(ctx, ticketID)
	if err != nil {
		return store.Ticket{}, newError(KindInternalFailure, "lock ticket: %v", err)
	}
	defer unlock()

	ticket, err := o.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Ticket{}, newError(KindNotFound, "ticket %s not found", ticketID)
		}
		return store.Ticket{}, newError(KindInternalFailure, "load ticket: %v", err)
	}
	if ticket.Status == store.StatusResolved {
		return store.Ticket{}, newError(KindAlreadyResolved, "ticket %s is already resolved", ticketID)
	}
	if !store.CanTransition(ticket.Status, store.StatusResolved) {
		return store.Ticket{}, newError(KindInvalidRequest, "ticket %s is %s and has not been analyzed", ticketID, ticket.Status)
	}

	resolutionType := proposedResolution(ticket)
	if in.Decision == DecisionOverride {
		resolutionType = in.OverrideResolution.ResolutionType
		if in.OverrideResolution.Amount > ticket.DisputeValue {
			return store.Ticket{}, newError(KindInvalidRequest, "override amount %.2f exceeds dispute value %.2f", in.OverrideResolution.Amount, ticket.DisputeValue)
		}
	}

	now := o.now().UTC()
	record := humanDecisionRecord{
		Decision:           in.Decision,
		Comments:           in.Comments,
		Reviewer:           in.Reviewer,
		OverrideResolution: in.OverrideResolution,
		Timestamp:          now,
	}
	resolved := store.StatusResolved
	notRequired := false
	patch := store.TicketPatch{
		Status:              &resolved,
		HumanDecision:       record,
		HumanReviewRequired: &notRequired,
		ResolvedAt:          &now,
		Actor:               firstNonEmpty(in.Reviewer, "reviewer"),
		Reason:              fmt.Sprintf("human %s", in.Decision),
	}
	if in.OverrideResolution != nil && in.Decision == DecisionOverride {
		patch.Resolution = in.OverrideResolution
	}
	updated, err := o.tickets.UpdateTicket(ctx, ticketID, patch)
	if err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			return store.Ticket{}, newError(KindInvalidRequest, "%v", err)
		}
		return store.Ticket{}, newError(KindExecutionFailure, "resolve ticket: %v", err)
	}

	if _, err := o.recorder.Append(ctx, ticketID, store.AgentExecution, ActionHumanDecision, map[string]any{
		"human_decision":  record,
		"resolution_type": resolutionType,
	}); err != nil {
		logrus.WithField("ticket_id", ticketID).WithError(err).Warn("record human decision")
	}
	if o.notifier != nil {
		o.notifier.SendResolutionUpdate(ctx, updated, resolutionType)
	}
	return updated, nil
}

func proposedResolution(t store.Ticket) string {
	var proposal scoring.Analysis
	if t.AIProposal(&proposal) && proposal.ResolutionType != "" {
		return proposal.ResolutionType
	}
	return scoring.ResolutionManualReview
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
