package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced ticket does not exist.
	ErrNotFound = errors.New("ticket not found")
	// ErrInvalidTransition is returned when a patch would move a ticket backwards.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TransitionError describes a rejected status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// Unwrap lets errors.Is match ErrInvalidTransition.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// TicketStore persists dispute tickets. UpdateTicket must be atomic per ticket.
type TicketStore interface {
	CreateTicket(ctx context.Context, t *Ticket) error
	GetTicket(ctx context.Context, id string) (Ticket, error)
	UpdateTicket(ctx context.Context, id string, patch TicketPatch) (Ticket, error)
	ListTickets(ctx context.Context) ([]Ticket, error)
}

// LogStore persists negotiation log entries in insertion order per ticket.
type LogStore interface {
	AppendLog(ctx context.Context, entry *NegotiationLog) error
	ListLogs(ctx context.Context, ticketID string) ([]NegotiationLog, error)
}

// HistoryStore exposes the recorded status transitions of a ticket.
type HistoryStore interface {
	ListStateChanges(ctx context.Context, ticketID string) ([]StateChange, error)
}

// Store is the full persistence surface used by the server.
type Store interface {
	TicketStore
	LogStore
	HistoryStore
	Close() error
}

var (
	_ Store = (*Database)(nil)
	_ Store = (*Memory)(nil)
)
