package process

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/talmora/rialto/internal/ledger"
	"github.com/talmora/rialto/internal/model"
	"github.com/talmora/rialto/internal/narrative"
	"github.com/talmora/rialto/internal/store"
)

// LeaveVenice winds up a departing citizen's affairs: their transient
// holdings are liquidated at the configured per-unit price, the
// counterpart pays for them, and the citizen is marked as departed.
type LeaveVenice struct{}

func (p *LeaveVenice) Type() string { return TypeLeaveVenice }

func (p *LeaveVenice) Process(ctx context.Context, pc *ProcCtx, tx *sqlx.Tx, act *model.Activity) error {
	departing, err := store.GetCitizen(tx, act.Citizen)
	if err != nil {
		return err
	}
	counterpartName := pc.Cfg.Liquidation.Counterpart
	if _, err := store.GetCitizen(tx, counterpartName); err != nil {
		return fmt.Errorf("liquidation counterpart: %w", err)
	}

	// Only the citizen's own goods are liquidated. Stacks they carry for
	// someone else stay under the owner's claim.
	stacks, err := ledger.StacksAt(tx, ledger.CitizenHolder(departing.Username), departing.Username)
	if err != nil {
		return err
	}
	var units int64
	for _, st := range stacks {
		units += st.Count
	}

	if units > 0 {
		price := decimal.NewFromFloat(pc.Cfg.Liquidation.PricePerUnit).
			Mul(decimal.NewFromInt(units))
		for _, st := range stacks {
			if err := ledger.Consume(tx, st.Type, st.Count,
				ledger.CitizenHolder(departing.Username), departing.Username); err != nil {
				return err
			}
		}
		if err := store.AdjustDucats(tx, departing.Username, price); err != nil {
			return err
		}
		if err := store.AdjustDucats(tx, counterpartName, price.Neg()); err != nil {
			return err
		}
		executed := pc.Now
		if err := store.InsertTransaction(tx, &model.Transaction{
			Type:       "liquidation",
			Buyer:      counterpartName,
			Seller:     departing.Username,
			Price:      price,
			Asset:      act.ID,
			CreatedAt:  pc.Now,
			ExecutedAt: &executed,
		}); err != nil {
			return err
		}
	}

	if err := store.MarkDeparted(tx, departing.Username); err != nil {
		return err
	}

	farewell := narrative.Farewell(ctx, pc.Narrative, departing.Username)
	return store.AppendActivityNote(tx, act.ID, farewell)
}
