package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"clarity-disputes/backend/internal/api"
	"clarity-disputes/backend/internal/app"
	"clarity-disputes/backend/internal/config"
	"clarity-disputes/backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	cfg.ConfigureLogging()

	ctx := context.Background()
	stream := api.NewStreamHub()
	backend, err := app.Build(ctx, cfg, stream)
	if err != nil {
		logrus.Fatalf("build backend: %v", err)
	}
	defer func() {
		if cerr := backend.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("close backend")
		}
	}()

	if cfg.SeedSampleData {
		existing, err := backend.Store.ListTickets(ctx)
		if err != nil {
			logrus.Fatalf("list tickets: %v", err)
		}
		if len(existing) == 0 {
			n, err := store.Seed(ctx, backend.Store)
			if err != nil {
				logrus.Fatalf("seed sample tickets: %v", err)
			}
			logrus.WithField("tickets", n).Info("sample tickets seeded")
		}
	}

	server, err := api.NewServer(api.Config{
		Store:          backend.Store,
		Recorder:       backend.Recorder,
		Pipeline:       backend.Pipeline,
		Stream:         stream,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	logrus.Infof("starting dispute backend on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}
