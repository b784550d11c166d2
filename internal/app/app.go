package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"clarity-disputes/backend/internal/ai"
	"clarity-disputes/backend/internal/audit"
	"clarity-disputes/backend/internal/config"
	"clarity-disputes/backend/internal/lock"
	"clarity-disputes/backend/internal/notify"
	"clarity-disputes/backend/internal/pipeline"
	"clarity-disputes/backend/internal/store"
)

// App holds the assembled backend: persistence, audit trail, pipeline and notifications.
type App struct {
	Config   config.Config
	Store    store.Store
	Recorder *audit.Recorder
	Pipeline *pipeline.Orchestrator
	Notifier *notify.Notifier

	closers []func() error
}

// Build opens the store and wires every optional integration the configuration enables.
// Integrations that fail to start are logged and skipped; only the store is mandatory.
func Build(ctx context.Context, cfg config.Config, sinks ...audit.Sink) (*App, error) {
	a := &App{Config: cfg}

	db, err := openStore(cfg.Database)
	if err != nil {
		return nil, err
	}
	a.Store = db
	a.closers = append(a.closers, db.Close)

	a.Recorder = audit.NewRecorder(db, sinks...)
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			logrus.WithError(err).Warn("kafka audit sink disabled")
		} else {
			a.Recorder.AddSink(sink)
			a.closers = append(a.closers, sink.Close)
			logrus.WithFields(logrus.Fields{"brokers": cfg.Kafka.Brokers, "topic": cfg.Kafka.AuditTopic}).Info("kafka audit sink enabled")
		}
	}

	locker, err := a.buildLocker(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	deps := pipeline.Deps{
		Tickets:     db,
		Recorder:    a.Recorder,
		Locker:      locker,
		LockTimeout: cfg.Pipeline.LockTimeout,
	}
	if cfg.RemoteAnalysisEnabled() {
		client, err := ai.NewClient(ai.Config{
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			BaseURL:     cfg.AI.BaseURL,
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxTokens,
			Timeout:     cfg.AI.Timeout,
		})
		if err != nil {
			logrus.WithError(err).Warn("remote analysis disabled")
		} else {
			deps.Analyst = client
			logrus.WithField("model", cfg.AI.Model).Info("remote analysis enabled")
		}
	}

	a.Notifier = buildNotifier(ctx, cfg)
	deps.Notifier = a.Notifier
	a.Pipeline = pipeline.New(deps)
	return a, nil
}

// Close releases the store and any audit sinks, returning the joined errors.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openStore opens the configured backend. The memory driver keeps everything
// in process and loses it on exit.
func openStore(cfg config.DatabaseConfig) (store.Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case store.DriverMemory:
		logrus.Warn("using in-memory ticket store; data is not persisted")
		return store.NewMemory(), nil
	case "", store.DriverSQLite:
		if dir := filepath.Dir(cfg.DSN); dir != "." && !strings.HasPrefix(cfg.DSN, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
	}
	db, err := store.Open(driver, cfg.DSN, true)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func (a *App) buildLocker(ctx context.Context) (lock.Locker, error) {
	rc := a.Config.Redis
	if strings.TrimSpace(rc.Addr) == "" {
		return lock.NewKeyedMutex(), nil
	}
	client := redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", rc.Addr, err)
	}
	a.closers = append(a.closers, client.Close)
	logrus.WithField("addr", rc.Addr).Info("using redis ticket locks")
	return lock.NewRedisLocker(client, lock.WithTTL(rc.LockTTL)), nil
}

func buildNotifier(ctx context.Context, cfg config.Config) *notify.Notifier {
	slack := notify.NewSlackClient(notify.SlackConfig{Token: cfg.Slack.BotToken, ChannelID: cfg.Slack.ChannelID})

	var mailer notify.Mailer
	if strings.TrimSpace(cfg.Email.From) != "" {
		ses, err := notify.NewSESMailer(ctx, notify.SESConfig{
			Region:    cfg.Email.Region,
			AccessKey: cfg.Email.AccessKeyID,
			SecretKey: cfg.Email.SecretAccessKey,
			From:      cfg.Email.From,
		})
		if err != nil {
			logrus.WithError(err).Warn("email alerts disabled")
		} else {
			mailer = ses
		}
	}
	return notify.New(slack, mailer, cfg.Email.AdminEmail)
}
