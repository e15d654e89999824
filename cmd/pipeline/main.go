// Command pipeline runs one cycle of the Rialto activity processing batch:
// it promotes arrived vessels, finds every activity whose time window has
// elapsed, applies its economic effects, and records a terminal outcome.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/talmora/rialto/internal/config"
	"github.com/talmora/rialto/internal/fees"
	"github.com/talmora/rialto/internal/narrative"
	"github.com/talmora/rialto/internal/pipeline"
	"github.com/talmora/rialto/internal/process"
	"github.com/talmora/rialto/internal/store"
)

func main() {
	var (
		dbPath     = flag.String("db", "data/rialto.db", "path to the sqlite record store")
		cfgPath    = flag.String("config", "", "path to rialto.yaml (empty: defaults)")
		dryRun     = flag.Bool("dry-run", false, "evaluate the batch without mutating anything")
		citizen    = flag.String("citizen", "", "scope the batch to one citizen's activities")
		forcedHour = flag.Int("forced-hour", -1, "treat now as this hour of the day (0-23, UTC)")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	slog.Info("Rialto activity processing pipeline starting")

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "path", *cfgPath, "error", err)
		os.Exit(1)
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		slog.Error("failed to open record store", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("record store opened", "path", *dbPath)

	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")
	narrator := narrative.NewClient(anthropicKey)
	if narrator.Enabled() {
		slog.Info("narrative client enabled")
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set, narrative features use canned fallbacks")
	}

	now := time.Now().UTC()
	if *forcedHour >= 0 && *forcedHour <= 23 {
		now = time.Date(now.Year(), now.Month(), now.Day(), *forcedHour, 0, 0, 0, time.UTC)
		slog.Info("clock forced", "now", now.Format(time.RFC3339))
	}

	runner := &pipeline.Runner{
		Store:     st,
		Cfg:       cfg,
		Registry:  process.NewRegistry(),
		Fees:      fees.NewCalculator(cfg),
		Narrative: narrator,
		DryRun:    *dryRun,
		Citizen:   *citizen,
		Now:       now,
	}

	sum, err := runner.Run(context.Background())
	if err != nil {
		slog.Error("batch run failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Run complete: %d processed, %d failed, %d vessel arrivals.\n",
		sum.Processed, sum.Failed, sum.Arrivals)
}
