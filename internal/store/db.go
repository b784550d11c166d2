package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm   *gorm.DB
	driver string
	mu     sync.Mutex
}

// Open initializes the database for the given driver and DSN.
func Open(driver, dsn string, silent bool) (*Database, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		driver = DriverSQLite
	}
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Ticket{}, &NegotiationLog{}, &StateChange{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if driver == DriverSQLite {
		if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
			logrus.WithError(err).Warn("enable WAL mode")
		}
		if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
			logrus.WithError(err).Warn("set synchronous pragma")
		}
	}
	return &Database{gorm: db, driver: driver}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateTicket inserts a new ticket, filling in the identifier and defaults.
func (d *Database) CreateTicket(ctx context.Context, t *Ticket) error {
	if t == nil {
		return errors.New("ticket is nil")
	}
	prepareTicket(t, time.Now().UTC())
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.WithContext(ctx).Create(t).Error
}

// GetTicket loads a ticket by ID.
func (d *Database) GetTicket(ctx context.Context, id string) (Ticket, error) {
	var t Ticket
	err := d.gorm.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Ticket{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Ticket{}, err
	}
	return t, nil
}

// UpdateTicket applies the patch inside a transaction that re-reads the row first,
// and records a state change row when the status moves.
func (d *Database) UpdateTicket(ctx context.Context, id string, patch TicketPatch) (Ticket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var updated Ticket
	err := d.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("id = ?", id)
		if d.driver == DriverPostgres {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var t Ticket
		if err := q.First(&t).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return err
		}
		prev, changed, err := patch.apply(&t)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		t.UpdatedAt = now
		if err := tx.Save(&t).Error; err != nil {
			return err
		}
		if changed {
			change := StateChange{
				TicketID:   t.ID,
				FromStatus: prev,
				ToStatus:   t.Status,
				Actor:      patch.Actor,
				Reason:     patch.Reason,
				ChangedAt:  now,
			}
			if err := tx.Create(&change).Error; err != nil {
				return err
			}
		}
		updated = t
		return nil
	})
	if err != nil {
		return Ticket{}, err
	}
	return updated, nil
}

// ListTickets returns all tickets in creation order.
func (d *Database) ListTickets(ctx context.Context) ([]Ticket, error) {
	var rows []Ticket
	if err := d.gorm.WithContext(ctx).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// AppendLog inserts a negotiation log entry. Entries are never updated or deleted.
func (d *Database) AppendLog(ctx context.Context, entry *NegotiationLog) error {
	if entry == nil {
		return errors.New("log entry is nil")
	}
	prepareLog(entry, time.Now().UTC())
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.WithContext(ctx).Create(entry).Error
}

// ListLogs returns the negotiation log of a ticket in insertion order.
func (d *Database) ListLogs(ctx context.Context, ticketID string) ([]NegotiationLog, error) {
	var rows []NegotiationLog
	if err := d.gorm.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("seq ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListStateChanges returns the status history of a ticket, oldest first.
func (d *Database) ListStateChanges(ctx context.Context, ticketID string) ([]StateChange, error) {
	var rows []StateChange
	if err := d.gorm.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func prepareTicket(t *Ticket, now time.Time) {
	if strings.TrimSpace(t.ID) == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.RiskLevel == "" {
		t.RiskLevel = "medium"
	}
	t.Category = NormalizeCategory(t.Category)
	t.CustomerEmail = strings.TrimSpace(t.CustomerEmail)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}

func prepareLog(entry *NegotiationLog, now time.Time) {
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = now
	}
}
