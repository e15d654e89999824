package process

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/talmora/rialto/internal/geo"
	"github.com/talmora/rialto/internal/ledger"
	"github.com/talmora/rialto/internal/model"
	"github.com/talmora/rialto/internal/store"
)

// Fishing lands the configured catch in the fisher's personal inventory,
// feeds them, and leaves them at the end of their path. It succeeds
// whenever the citizen exists; a full basket just means a smaller haul.
// Registered for both fishing and emergency_fishing.
type Fishing struct {
	tag string
}

func (p *Fishing) Type() string { return p.tag }

func (p *Fishing) Process(ctx context.Context, pc *ProcCtx, tx *sqlx.Tx, act *model.Activity) error {
	fisher, err := store.GetCitizen(tx, act.Citizen)
	if err != nil {
		return err
	}

	// Clamp the haul to the room left in the fisher's basket so carrying
	// capacity still holds after the catch.
	catch := pc.Cfg.Fishing.Amount
	capacity := pc.Cfg.CarryCapacityFor(fisher.CarryCapacity)
	carried, err := ledger.StoredAt(tx, ledger.CitizenHolder(fisher.Username))
	if err != nil {
		return err
	}
	if room := capacity - carried; room < catch {
		catch = room
	}
	if catch > 0 {
		if err := ledger.Deposit(tx, pc.Cfg.Fishing.Resource, catch,
			ledger.CitizenHolder(fisher.Username), fisher.Username); err != nil {
			return err
		}
	}

	if err := store.SetAteAt(tx, fisher.Username, pc.Now); err != nil {
		return err
	}

	// The fisher ends up where the path ends.
	path, err := act.Path()
	if err == nil && len(path) > 0 {
		last := path[len(path)-1]
		pos := geo.EncodePosition(model.Position{Lat: last.Lat, Lng: last.Lng})
		if err := store.SetCitizenPosition(tx, fisher.Username, pos); err != nil {
			return err
		}
	}
	return nil
}
