package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"clarity-disputes/backend/internal/app"
	"clarity-disputes/backend/internal/config"
	"clarity-disputes/backend/internal/pipeline"
	"clarity-disputes/backend/internal/store"
	"clarity-disputes/backend/internal/util"
)

func main() {
	var (
		driver  = flag.String("driver", "", "Database driver (sqlite or postgres); overrides config")
		dsn     = flag.String("dsn", "", "Database DSN; overrides config")
		seed    = flag.Bool("seed", false, "Insert the sample tickets before processing")
		process = flag.Bool("process", true, "Run the decision pipeline over every pending ticket")
		summary = flag.Bool("summary", false, "Send the daily summary to Slack after processing")
		output  = flag.String("output", "", "Optional path to write the pipeline results as JSON")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	if *driver != "" {
		cfg.Database.Driver = *driver
	}
	if *dsn != "" {
		cfg.Database.DSN = *dsn
	}
	cfg.ConfigureLogging()

	ctx := context.Background()
	backend, err := app.Build(ctx, cfg)
	if err != nil {
		logrus.Fatalf("build backend: %v", err)
	}
	defer func() {
		if cerr := backend.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("close backend")
		}
	}()

	if *seed {
		n, err := store.Seed(ctx, backend.Store)
		if err != nil {
			logrus.Fatalf("seed sample tickets: %v", err)
		}
		logrus.WithField("tickets", n).Info("sample tickets seeded")
	}

	var results []pipeline.Result
	if *process {
		results = processPending(ctx, backend)
	}

	if *summary {
		tickets, err := backend.Store.ListTickets(ctx)
		if err != nil {
			logrus.Fatalf("list tickets: %v", err)
		}
		s, sent := backend.Notifier.SendDailySummary(ctx, tickets, time.Now())
		logrus.WithFields(logrus.Fields{
			"new":       s.NewTickets,
			"resolved":  s.ResolvedToday,
			"pending":   s.PendingHumanReview,
			"slack_ok":  sent,
			"auto_rate": s.AutoResolutionRate,
		}).Info("daily summary")
	}

	if *output != "" {
		if err := writeResults(*output, results); err != nil {
			logrus.Fatalf("write results: %v", err)
		}
		logrus.WithField("path", *output).Info("pipeline results written to file")
	}
}

func processPending(ctx context.Context, backend *app.App) []pipeline.Result {
	tickets, err := backend.Store.ListTickets(ctx)
	if err != nil {
		logrus.Fatalf("list tickets: %v", err)
	}
	sw := util.StartStopwatch()
	results := make([]pipeline.Result, 0, len(tickets))
	counts := map[store.Status]int{}
	failures := 0
	for _, t := range tickets {
		if t.Status != store.StatusPending {
			continue
		}
		res := backend.Pipeline.ProcessTicket(ctx, t.ID)
		results = append(results, res)
		if res.Error != nil {
			failures++
			logrus.WithFields(logrus.Fields{"ticket_id": t.ID, "kind": res.Error.Kind}).Warn(res.Error.Message)
			continue
		}
		counts[res.Status]++
	}
	logrus.WithFields(logrus.Fields{
		"processed":     len(results),
		"auto_resolved": counts[store.StatusAutoResolved],
		"human_review":  counts[store.StatusPendingHumanReview],
		"failures":      failures,
		"duration":      sw.Elapsed().Round(time.Millisecond),
	}).Info("batch processing complete")
	return results
}

func writeResults(path string, results []pipeline.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}
