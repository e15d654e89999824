// Package process holds the per-type activity processors. A processor
// receives a typed context and one due activity, checks every precondition
// before writing, and applies its domain effects inside the caller's
// transaction. A nil return means processed; an error means failed with
// that reason, and the transaction is rolled back so no partial mutation
// survives.
package process

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/talmora/rialto/internal/config"
	"github.com/talmora/rialto/internal/model"
	"github.com/talmora/rialto/internal/narrative"
	"github.com/talmora/rialto/internal/store"
)

// ErrUnknownType is a dispatch failure: no processor is registered for the
// activity's type tag. Distinguished in logs from a processor that ran and
// failed.
var ErrUnknownType = errors.New("unknown activity type")

// ProcCtx carries the batch's shared handles into every processor. It is
// owned by the pipeline runner for the duration of one run.
type ProcCtx struct {
	Store     *store.Store
	Cfg       *config.Config
	Narrative *narrative.Client
	Now       time.Time
	DryRun    bool
}

// Processor applies one activity's domain effects.
type Processor interface {
	// Type returns the activity-type tag this processor handles.
	Type() string
	// Process applies the activity inside tx. Every precondition must be
	// checked before the first write.
	Process(ctx context.Context, pc *ProcCtx, tx *sqlx.Tx, act *model.Activity) error
}
