package store

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the lifecycle state of a dispute ticket.
type Status string

const (
	StatusPending            Status = "pending"
	StatusProcessing         Status = "processing"
	StatusAutoResolved       Status = "auto_resolved"
	StatusPendingHumanReview Status = "pending_human_review"
	StatusResolved           Status = "resolved"
)

// Category values recognised by the risk analyzer. Anything else is scored as generic.
const (
	CategoryProductDefect = "product_defect"
	CategoryShipping      = "shipping"
	CategoryBilling       = "billing"
	CategoryService       = "service"
	CategoryGeneral       = "general"
)

// Agent types allowed on negotiation log entries.
const (
	AgentPlanning  = "planning"
	AgentExecution = "execution"
)

// transitions lists the forward-only moves of the ticket state machine.
var transitions = map[Status][]Status{
	StatusPending:            {StatusProcessing},
	StatusProcessing:         {StatusProcessing, StatusAutoResolved, StatusPendingHumanReview},
	StatusPendingHumanReview: {StatusAutoResolved, StatusPendingHumanReview, StatusResolved},
	StatusAutoResolved:       {StatusResolved},
}

// CanTransition reports whether a ticket may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status may no longer be processed by the pipeline.
func (s Status) Terminal() bool {
	return s == StatusAutoResolved || s == StatusResolved
}

// Ticket is a customer dispute under resolution.
type Ticket struct {
	ID                  string  `gorm:"primaryKey;size:64"`
	Title               string  `gorm:"size:256"`
	Description         string  `gorm:"type:text"`
	CustomerEmail       string  `gorm:"size:256;index"`
	DisputeValue        float64 `gorm:"not null;default:0"`
	Category            string  `gorm:"size:32;index"`
	Status              Status  `gorm:"size:32;index"`
	RiskLevel           string  `gorm:"size:16;index"`
	EthicalScore        *int
	HumanReviewRequired bool
	AIProposalJSON      string `gorm:"type:text"`
	HumanDecisionJSON   string `gorm:"type:text"`
	ResolutionJSON      string `gorm:"type:text"`
	ResolvedAt          *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SetAIProposal stores the last analysis as JSON.
func (t *Ticket) SetAIProposal(v any) {
	t.AIProposalJSON = encodeJSON(v)
}

// AIProposal decodes the stored analysis into out. It reports false when nothing is stored.
func (t *Ticket) AIProposal(out any) bool {
	return decodeJSON(t.AIProposalJSON, out)
}

// SetResolution stores the applied resolution as JSON.
func (t *Ticket) SetResolution(v any) {
	t.ResolutionJSON = encodeJSON(v)
}

// Resolution decodes the applied resolution into out.
func (t *Ticket) Resolution(out any) bool {
	return decodeJSON(t.ResolutionJSON, out)
}

// SetHumanDecision stores the reviewer's decision as JSON.
func (t *Ticket) SetHumanDecision(v any) {
	t.HumanDecisionJSON = encodeJSON(v)
}

// HumanDecision decodes the reviewer's decision into out.
func (t *Ticket) HumanDecision(out any) bool {
	return decodeJSON(t.HumanDecisionJSON, out)
}

// TicketPatch carries the fields to change on a ticket. Nil fields are left untouched.
type TicketPatch struct {
	Status              *Status
	RiskLevel           *string
	EthicalScore        *int
	HumanReviewRequired *bool
	AIProposal          any
	HumanDecision       any
	Resolution          any
	ResolvedAt          *time.Time

	// Actor and Reason are recorded on the state history row when Status changes.
	Actor  string
	Reason string
}

// apply mutates t in place and returns the previous status when the patch changes it.
func (p TicketPatch) apply(t *Ticket) (Status, bool, error) {
	prev := t.Status
	changed := false
	if p.Status != nil {
		if !CanTransition(t.Status, *p.Status) {
			return prev, false, &TransitionError{From: t.Status, To: *p.Status}
		}
		changed = *p.Status != t.Status
		t.Status = *p.Status
	}
	if p.RiskLevel != nil {
		t.RiskLevel = *p.RiskLevel
	}
	if p.EthicalScore != nil {
		score := *p.EthicalScore
		t.EthicalScore = &score
	}
	if p.HumanReviewRequired != nil {
		t.HumanReviewRequired = *p.HumanReviewRequired
	}
	if p.AIProposal != nil {
		t.SetAIProposal(p.AIProposal)
	}
	if p.HumanDecision != nil {
		t.SetHumanDecision(p.HumanDecision)
	}
	if p.Resolution != nil {
		t.SetResolution(p.Resolution)
	}
	if p.ResolvedAt != nil {
		at := p.ResolvedAt.UTC()
		t.ResolvedAt = &at
	}
	return prev, changed, nil
}

// NegotiationLog is one append-only audit entry for a ticket.
type NegotiationLog struct {
	Seq        uint   `gorm:"primaryKey;autoIncrement"`
	ID         string `gorm:"size:64;uniqueIndex"`
	TicketID   string `gorm:"size:64;index:idx_negotiation_logs_ticket_seq,priority:1"`
	AgentType  string `gorm:"size:16"`
	Action     string `gorm:"size:64"`
	DetailJSON string `gorm:"type:text"`
	Timestamp  time.Time
}

// SetDetail stores the opaque detail payload as JSON.
func (l *NegotiationLog) SetDetail(v any) {
	l.DetailJSON = encodeJSON(v)
}

// Detail decodes the detail payload as a generic map.
func (l *NegotiationLog) Detail() map[string]any {
	out := map[string]any{}
	if !decodeJSON(l.DetailJSON, &out) {
		return nil
	}
	return out
}

// StateChange records one status transition of a ticket.
type StateChange struct {
	ID         uint   `gorm:"primaryKey"`
	TicketID   string `gorm:"size:64;index"`
	FromStatus Status `gorm:"size:32"`
	ToStatus   Status `gorm:"size:32"`
	Actor      string `gorm:"size:64"`
	Reason     string `gorm:"size:255"`
	ChangedAt  time.Time
}

// Overview aggregates ticket counts for the dashboard.
type Overview struct {
	TotalTickets       int     `json:"total_tickets"`
	PendingTickets     int     `json:"pending_tickets"`
	ResolvedTickets    int     `json:"resolved_tickets"`
	HighRiskTickets    int     `json:"high_risk_tickets"`
	AutoResolved       int     `json:"auto_resolved_tickets"`
	PendingHumanReview int     `json:"pending_human_review"`
	AutoResolutionRate float64 `json:"auto_resolution_rate"`
}

// Summarize computes dashboard counts from a ticket list.
func Summarize(tickets []Ticket) Overview {
	var o Overview
	o.TotalTickets = len(tickets)
	for _, t := range tickets {
		switch t.Status {
		case StatusPending:
			o.PendingTickets++
		case StatusPendingHumanReview:
			o.PendingTickets++
			o.PendingHumanReview++
		case StatusResolved:
			o.ResolvedTickets++
		case StatusAutoResolved:
			o.ResolvedTickets++
			o.AutoResolved++
		}
		if t.RiskLevel == "high" {
			o.HighRiskTickets++
		}
	}
	if o.TotalTickets > 0 {
		o.AutoResolutionRate = float64(o.AutoResolved) / float64(o.TotalTickets) * 100
	}
	return o
}

// NormalizeCategory maps free-form category input to a known category, falling back to general.
func NormalizeCategory(value string) string {
	switch key := strings.ToLower(strings.TrimSpace(value)); key {
	case CategoryProductDefect, CategoryShipping, CategoryBilling, CategoryService:
		return key
	default:
		return CategoryGeneral
	}
}

func encodeJSON(v any) string {
	if v == nil {
		return ""
	}
	if raw, ok := v.(string); ok {
		return raw
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(payload)
}

func decodeJSON(raw string, out any) bool {
	if strings.TrimSpace(raw) == "" || raw == "null" {
		return false
	}
	return json.Unmarshal([]byte(raw), out) == nil
}
