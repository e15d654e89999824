package process

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/talmora/rialto/internal/model"
)

// Placeholder handles activity types whose only effect is the passage of
// time: the citizen rested, idled, or walked somewhere. Always succeeds.
type Placeholder struct {
	tag string
}

func (p *Placeholder) Type() string { return p.tag }

func (p *Placeholder) Process(ctx context.Context, pc *ProcCtx, tx *sqlx.Tx, act *model.Activity) error {
	return nil
}
