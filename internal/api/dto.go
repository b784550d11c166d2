package api

import (
	"encoding/json"
	"strings"
	"time"

	"clarity-disputes/backend/internal/audit"
	"clarity-disputes/backend/internal/store"
)

// CreateTicketRequest is the payload accepted by POST /api/tickets.
type CreateTicketRequest struct {
	Title         string  `json:"title" binding:"required"`
	Description   string  `json:"description"`
	CustomerEmail string  `json:"customer_email" binding:"required"`
	DisputeValue  float64 `json:"dispute_value" binding:"gte=0"`
	Category      string  `json:"category"`
}

// EthicsScoreRequest is the payload accepted by POST /api/ethics/score.
type EthicsScoreRequest struct {
	TicketDescription string  `json:"ticket_description"`
	ResolutionType    string  `json:"resolution_type"`
	Amount            float64 `json:"amount"`
}

// TicketDTO is the API representation of a ticket.
type TicketDTO struct {
	ID                  string          `json:"id"`
	Title               string          `json:"title"`
	Description         string          `json:"description"`
	CustomerEmail       string          `json:"customer_email"`
	DisputeValue        float64         `json:"dispute_value"`
	Category            string          `json:"category"`
	Status              store.Status    `json:"status"`
	RiskLevel           string          `json:"risk_level"`
	EthicalScore        *int            `json:"ethical_score"`
	HumanReviewRequired bool            `json:"human_review_required"`
	AIProposal          json.RawMessage `json:"ai_proposal"`
	HumanDecision       json.RawMessage `json:"human_decision"`
	Resolution          json.RawMessage `json:"resolution"`
	ResolvedAt          *time.Time      `json:"resolved_at"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// TicketDetailResponse is returned by GET /api/tickets/:id.
type TicketDetailResponse struct {
	Ticket       TicketDTO     `json:"ticket"`
	Negotiations []audit.Entry `json:"negotiations"`
}

// TicketsResponse wraps a ticket listing.
type TicketsResponse struct {
	Items []TicketDTO `json:"items"`
	Total int         `json:"total"`
}

// StateChangeDTO is one row of a ticket's status history.
type StateChangeDTO struct {
	From      store.Status `json:"from"`
	To        store.Status `json:"to"`
	Actor     string       `json:"actor"`
	Reason    string       `json:"reason"`
	ChangedAt time.Time    `json:"changed_at"`
}

// ImportResponse reports the outcome of a CSV ticket import.
type ImportResponse struct {
	RowCount  int      `json:"row_count"`
	Created   int      `json:"created"`
	Skipped   int      `json:"skipped"`
	Processed int      `json:"processed"`
	TicketIDs []string `json:"ticket_ids"`
	Errors    []string `json:"errors,omitempty"`
}

// TicketFromModel converts a stored ticket into its API shape.
func TicketFromModel(t store.Ticket) TicketDTO {
	return TicketDTO{
		ID:                  t.ID,
		Title:               t.Title,
		Description:         t.Description,
		CustomerEmail:       t.CustomerEmail,
		DisputeValue:        t.DisputeValue,
		Category:            t.Category,
		Status:              t.Status,
		RiskLevel:           t.RiskLevel,
		EthicalScore:        t.EthicalScore,
		HumanReviewRequired: t.HumanReviewRequired,
		AIProposal:          rawJSON(t.AIProposalJSON),
		HumanDecision:       rawJSON(t.HumanDecisionJSON),
		Resolution:          rawJSON(t.ResolutionJSON),
		ResolvedAt:          t.ResolvedAt,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
}

// StateChangeFromModel converts a state history row.
func StateChangeFromModel(c store.StateChange) StateChangeDTO {
	return StateChangeDTO{From: c.FromStatus, To: c.ToStatus, Actor: c.Actor, Reason: c.Reason, ChangedAt: c.ChangedAt}
}

func rawJSON(value string) json.RawMessage {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || !json.Valid([]byte(trimmed)) {
		return json.RawMessage("null")
	}
	return json.RawMessage(trimmed)
}
