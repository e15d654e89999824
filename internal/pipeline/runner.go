// Package pipeline orchestrates one batch run: arrival scanning, activity
// selection, per-activity dispatch, status recording, fee accrual, and
// position updates. Each activity is its own error boundary; nothing an
// individual activity does can abort the batch.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jmoiron/sqlx"

	"github.com/talmora/rialto/internal/config"
	"github.com/talmora/rialto/internal/fees"
	"github.com/talmora/rialto/internal/model"
	"github.com/talmora/rialto/internal/narrative"
	"github.com/talmora/rialto/internal/process"
	"github.com/talmora/rialto/internal/store"
)

// errDryRun forces transaction rollback after a dry-run evaluation.
var errDryRun = errors.New("dry run rollback")

// Runner owns one batch invocation.
type Runner struct {
	Store     *store.Store
	Cfg       *config.Config
	Registry  *process.Registry
	Fees      *fees.Calculator
	Narrative *narrative.Client

	// DryRun evaluates every activity but rolls back all writes.
	DryRun bool
	// Citizen scopes the batch to one actor when non-empty.
	Citizen string
	// Now is the batch clock; zero means wall-clock UTC.
	Now time.Time
}

// Summary tallies one run.
type Summary struct {
	Arrivals  int
	Processed int
	Failed    int
}

// Run executes one full batch.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	now := r.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	var sum Summary

	arrivals, err := ScanArrivals(r.Store, r.Cfg, now, r.DryRun)
	if err != nil {
		return sum, err
	}
	sum.Arrivals = arrivals

	acts, err := r.Store.DueActivities(now, r.Citizen)
	if err != nil {
		return sum, err
	}
	slog.Info("batch selected",
		"due", len(acts),
		"arrivals", arrivals,
		"now", now.Format(time.RFC3339),
		"dry_run", r.DryRun,
	)

	for i := range acts {
		act := &acts[i]
		if err := r.resolveOne(ctx, act, now); err != nil {
			sum.Failed++
		} else {
			sum.Processed++
		}
	}

	slog.Info("batch complete",
		"processed", humanize.Comma(int64(sum.Processed)),
		"failed", humanize.Comma(int64(sum.Failed)),
	)
	return sum, nil
}

// resolveOne takes a single activity to its terminal state: dispatch,
// domain effects in one transaction, status write, then the toll and the
// position update, which run whether or not the processor succeeded.
func (r *Runner) resolveOne(ctx context.Context, act *model.Activity, now time.Time) error {
	pc := &process.ProcCtx{
		Store:     r.Store,
		Cfg:       r.Cfg,
		Narrative: r.Narrative,
		Now:       now,
		DryRun:    r.DryRun,
	}

	var procErr error
	proc, dispatchErr := r.Registry.Lookup(act.Type)
	if dispatchErr != nil {
		slog.Warn("dispatch failure",
			"activity", act.ID,
			"type", act.Type,
			"error", dispatchErr,
		)
		procErr = dispatchErr
	} else {
		procErr = r.runProcessor(ctx, pc, proc, act)
		if procErr != nil {
			slog.Warn("activity failed",
				"activity", act.ID,
				"type", act.Type,
				"citizen", act.Citizen,
				"error", procErr,
			)
		} else {
			slog.Info("activity processed",
				"activity", act.ID,
				"type", act.Type,
				"citizen", act.Citizen,
			)
		}
	}

	if !r.DryRun {
		if procErr != nil {
			if err := r.Store.MarkFailed(act.ID, procErr.Error()); err != nil {
				slog.Error("status write failed", "activity", act.ID, "error", err)
			}
		} else {
			if err := r.Store.MarkProcessed(act.ID); err != nil {
				slog.Error("status write failed", "activity", act.ID, "error", err)
			}
		}

		// The toll is for having traveled, not for succeeding.
		if err := r.Store.WithTx(func(tx *sqlx.Tx) error {
			return r.Fees.Apply(tx, act, now)
		}); err != nil {
			slog.Error("fee application failed", "activity", act.ID, "error", err)
		}

		if err := r.Store.WithTx(func(tx *sqlx.Tx) error {
			return UpdatePosition(tx, act)
		}); err != nil {
			slog.Error("position update failed", "activity", act.ID, "error", err)
		}
	}

	return procErr
}

// runProcessor applies the processor inside a transaction. A processor
// error, or dry-run mode, rolls every write back, so a failed activity
// leaves the ledger bit-for-bit unchanged.
func (r *Runner) runProcessor(ctx context.Context, pc *process.ProcCtx, proc process.Processor, act *model.Activity) error {
	var procErr error
	txErr := r.Store.WithTx(func(tx *sqlx.Tx) error {
		procErr = proc.Process(ctx, pc, tx, act)
		if procErr != nil {
			return procErr
		}
		if r.DryRun {
			return errDryRun
		}
		return nil
	})
	if procErr != nil {
		return procErr
	}
	if txErr != nil && !errors.Is(txErr, errDryRun) {
		return txErr
	}
	return nil
}
