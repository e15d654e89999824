package process

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/talmora/rialto/internal/ledger"
	"github.com/talmora/rialto/internal/model"
	"github.com/talmora/rialto/internal/store"
)

// ConstructBuilding advances a construction site by the activity's elapsed
// work minutes, consuming materials stockpiled at the site in proportion.
// When the minutes owed reach zero the site is complete and gains an
// operator.
type ConstructBuilding struct{}

func (p *ConstructBuilding) Type() string { return TypeConstructBuilding }

func (p *ConstructBuilding) Process(ctx context.Context, pc *ProcCtx, tx *sqlx.Tx, act *model.Activity) error {
	site, err := requireBuilding(tx, act.ToBuilding, "construction site")
	if err != nil {
		return err
	}
	if site.IsConstructed || site.ConstructionMinutesRemaining <= 0 {
		return fmt.Errorf("site %s is already constructed", site.ID)
	}

	minutes := act.DurationMinutes()
	if minutes <= 0 {
		return fmt.Errorf("activity %s covers no work minutes", act.ID)
	}
	if minutes > site.ConstructionMinutesRemaining {
		minutes = site.ConstructionMinutesRemaining
	}

	// One unit of material per MinutesPerUnit of work, rounded up, drawn
	// from the site owner's stockpile across the accepted material types.
	perUnit := pc.Cfg.Construction.MinutesPerUnit
	needed := (minutes + perUnit - 1) / perUnit

	at := ledger.BuildingHolder(site.ID)
	available := make(map[string]int64, len(pc.Cfg.Construction.Materials))
	var total int64
	for _, mat := range pc.Cfg.Construction.Materials {
		have, err := ledger.Stock(tx, mat, at, site.Owner)
		if err != nil {
			return err
		}
		available[mat] = have
		total += have
	}
	if total < needed {
		return fmt.Errorf("%d building materials at %s, segment needs %d: %w",
			total, site.ID, needed, ledger.ErrInsufficientStock)
	}

	remaining := needed
	for _, mat := range pc.Cfg.Construction.Materials {
		if remaining == 0 {
			break
		}
		take := available[mat]
		if take == 0 {
			continue
		}
		if take > remaining {
			take = remaining
		}
		if err := ledger.Consume(tx, mat, take, at, site.Owner); err != nil {
			return err
		}
		remaining -= take
	}

	worker, err := store.GetCitizen(tx, act.Citizen)
	if err != nil {
		return err
	}
	return store.ApplyConstructionWork(tx, site.ID, minutes, fallbackOperator(site, worker.Username))
}

// fallbackOperator picks who runs a freshly completed building.
func fallbackOperator(site *model.Building, worker string) string {
	if site.Owner != "" {
		return site.Owner
	}
	return worker
}
