package pipeline

import (
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/talmora/rialto/internal/geo"
	"github.com/talmora/rialto/internal/model"
	"github.com/talmora/rialto/internal/process"
	"github.com/talmora/rialto/internal/store"
)

// selfLocating are activity types whose processor already manages the
// actor's location; the position updater leaves those alone.
var selfLocating = map[string]bool{
	process.TypeFetchResource:    true,
	process.TypeFishing:          true,
	process.TypeEmergencyFishing: true,
	process.TypeProduction:       true,
	"idle":                       true,
	"rest":                       true,
}

// UpdatePosition relocates the actor to the destination building of a
// resolved activity. Coordinates come from the building's stored position,
// falling back to coordinates embedded in its identifier.
func UpdatePosition(q sqlx.Ext, act *model.Activity) error {
	if selfLocating[act.Type] {
		return nil
	}
	if act.ToBuilding == nil || *act.ToBuilding == "" {
		return nil
	}
	b, err := store.GetBuilding(q, *act.ToBuilding)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("position update skipped, destination missing",
				"activity", act.ID, "building", *act.ToBuilding)
			return nil
		}
		return err
	}
	pos, ok := geo.ParsePositionJSON(b.PositionJSON)
	if !ok {
		pos, ok = geo.ParseIdentifierPosition(b.ID)
	}
	if !ok {
		slog.Warn("position update skipped, building has no coordinates",
			"activity", act.ID, "building", b.ID)
		return nil
	}
	return store.SetCitizenPosition(q, act.Citizen, geo.EncodePosition(pos))
}
