package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"clarity-disputes/backend/internal/store"
)

// ErrInvalidAgent is returned when an entry is tagged with an unknown agent type.
var ErrInvalidAgent = errors.New("invalid agent type")

// Entry is the public shape of one negotiation log entry.
type Entry struct {
	ID        string         `json:"id"`
	TicketID  string         `json:"ticket_id"`
	AgentType string         `json:"agent_type"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
	Timestamp time.Time      `json:"timestamp"`
}

// EntryFrom converts a stored log row into its public shape.
func EntryFrom(l store.NegotiationLog) Entry {
	return Entry{
		ID:        l.ID,
		TicketID:  l.TicketID,
		AgentType: l.AgentType,
		Action:    l.Action,
		Details:   l.Detail(),
		Timestamp: l.Timestamp,
	}
}

// Sink receives every entry after it has been persisted.
type Sink interface {
	Publish(ctx context.Context, entry Entry) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, entry Entry) error

func (f SinkFunc) Publish(ctx context.Context, entry Entry) error {
	return f(ctx, entry)
}

// Recorder appends entries to the negotiation log and fans them out to sinks.
// The store owns ordering; sinks are best effort and never fail an append.
type Recorder struct {
	logs  store.LogStore
	sinks []Sink
}

// NewRecorder constructs a Recorder over the given log store.
func NewRecorder(logs store.LogStore, sinks ...Sink) *Recorder {
	return &Recorder{logs: logs, sinks: sinks}
}

// AddSink registers an extra sink. It must be called before the recorder is shared.
func (r *Recorder) AddSink(s Sink) {
	if s != nil {
		r.sinks = append(r.sinks, s)
	}
}

// Append persists one entry for the ticket and returns it.
func (r *Recorder) Append(ctx context.Context, ticketID, agentType, action string, detail any) (Entry, error) {
	if agentType != store.AgentPlanning && agentType != store.AgentExecution {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidAgent, agentType)
	}
	row := &store.NegotiationLog{TicketID: ticketID, AgentType: agentType, Action: action}
	row.SetDetail(detail)
	if err := r.logs.AppendLog(ctx, row); err != nil {
		return Entry{}, fmt.Errorf("append negotiation log: %w", err)
	}
	entry := EntryFrom(*row)
	for _, sink := range r.sinks {
		if err := sink.Publish(ctx, entry); err != nil {
			logrus.WithFields(logrus.Fields{
				"ticket_id": ticketID,
				"action":    action,
			}).WithError(err).Warn("publish audit entry")
		}
	}
	return entry, nil
}

// List returns the ticket's entries in insertion order.
func (r *Recorder) List(ctx context.Context, ticketID string) ([]Entry, error) {
	rows, err := r.logs.ListLogs(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, EntryFrom(row))
	}
	return out, nil
}
