package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store. A single mutex makes every update an atomic
// read-modify-write and keeps per-ticket log order equal to append order.
type Memory struct {
	mu      sync.Mutex
	tickets map[string]Ticket
	order   []string
	logs    map[string][]NegotiationLog
	history map[string][]StateChange
	seq     uint
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tickets: make(map[string]Ticket),
		logs:    make(map[string][]NegotiationLog),
		history: make(map[string][]StateChange),
	}
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

func (m *Memory) CreateTicket(_ context.Context, t *Ticket) error {
	if t == nil {
		return errors.New("ticket is nil")
	}
	prepareTicket(t, time.Now().UTC())
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tickets[t.ID]; exists {
		return fmt.Errorf("ticket %s already exists", t.ID)
	}
	m.tickets[t.ID] = *t
	m.order = append(m.order, t.ID)
	return nil
}

func (m *Memory) GetTicket(_ context.Context, id string) (Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return Ticket{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t, nil
}

func (m *Memory) UpdateTicket(_ context.Context, id string, patch TicketPatch) (Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return Ticket{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	prev, changed, err := patch.apply(&t)
	if err != nil {
		return Ticket{}, err
	}
	now := time.Now().UTC()
	t.UpdatedAt = now
	m.tickets[id] = t
	if changed {
		m.history[id] = append(m.history[id], StateChange{
			ID:         uint(len(m.history[id]) + 1),
			TicketID:   id,
			FromStatus: prev,
			ToStatus:   t.Status,
			Actor:      patch.Actor,
			Reason:     patch.Reason,
			ChangedAt:  now,
		})
	}
	return t, nil
}

func (m *Memory) ListTickets(_ context.Context) ([]Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Ticket, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tickets[id])
	}
	return out, nil
}

func (m *Memory) AppendLog(_ context.Context, entry *NegotiationLog) error {
	if entry == nil {
		return errors.New("log entry is nil")
	}
	prepareLog(entry, time.Now().UTC())
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	entry.Seq = m.seq
	m.logs[entry.TicketID] = append(m.logs[entry.TicketID], *entry)
	return nil
}

func (m *Memory) ListLogs(_ context.Context, ticketID string) ([]NegotiationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]NegotiationLog(nil), m.logs[ticketID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (m *Memory) ListStateChanges(_ context.Context, ticketID string) ([]StateChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StateChange(nil), m.history[ticketID]...), nil
}
