package process

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/talmora/rialto/internal/geo"
	"github.com/talmora/rialto/internal/ledger"
	"github.com/talmora/rialto/internal/model"
	"github.com/talmora/rialto/internal/store"
)

// requireResources decodes the activity's resource payload and insists on
// at least one line.
func requireResources(act *model.Activity) ([]model.ResourceAmount, int64, error) {
	items, err := act.Resources()
	if err != nil {
		return nil, 0, err
	}
	if len(items) == 0 {
		return nil, 0, fmt.Errorf("activity %s has no resource payload", act.ID)
	}
	var total int64
	for _, it := range items {
		total += it.Amount
	}
	return items, total, nil
}

// requireBuilding dereferences an optional building field.
func requireBuilding(q sqlx.Queryer, id *string, role string) (*model.Building, error) {
	if id == nil || *id == "" {
		return nil, fmt.Errorf("no %s building on activity", role)
	}
	return store.GetBuilding(q, *id)
}

// checkCarry verifies a citizen can pick up `total` more units.
func checkCarry(q sqlx.Queryer, pc *ProcCtx, c *model.Citizen, total int64) error {
	capacity := pc.Cfg.CarryCapacityFor(c.CarryCapacity)
	ok, err := ledger.CheckCarryCapacity(q, c.Username, capacity, total)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("citizen %s carrying capacity %d: %w",
			c.Username, capacity, ledger.ErrCarryCapacity)
	}
	return nil
}

// checkStorage verifies a building can absorb `additional` more units.
// additional may be negative when inputs leave before outputs land.
func checkStorage(q sqlx.Queryer, pc *ProcCtx, b *model.Building, additional int64) error {
	capacity := pc.Cfg.StorageCapacityFor(b.Type, b.StorageCapacity)
	ok, err := ledger.CheckCapacity(q, b.ID, capacity, additional)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("building %s capacity %d: %w", b.ID, capacity, ledger.ErrStorageFull)
	}
	return nil
}

// moveCitizenTo relocates a citizen to a building's coordinates, falling
// back to coordinates embedded in the building identifier.
func moveCitizenTo(q sqlx.Ext, username string, b *model.Building) error {
	pos, ok := geo.ParsePositionJSON(b.PositionJSON)
	if !ok {
		pos, ok = geo.ParseIdentifierPosition(b.ID)
	}
	if !ok {
		// No coordinates anywhere; leave the citizen where they are.
		return nil
	}
	return store.SetCitizenPosition(q, username, geo.EncodePosition(pos))
}
