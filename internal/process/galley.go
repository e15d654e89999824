package process

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/talmora/rialto/internal/ledger"
	"github.com/talmora/rialto/internal/model"
	"github.com/talmora/rialto/internal/store"
)

// FetchFromGalley unloads cargo from an arrived merchant galley into the
// porter's inventory. The cargo sits in the vessel's stock under its
// operator; the linked contract says who the goods are ultimately for.
type FetchFromGalley struct{}

func (p *FetchFromGalley) Type() string { return TypeFetchFromGalley }

func (p *FetchFromGalley) Process(ctx context.Context, pc *ProcCtx, tx *sqlx.Tx, act *model.Activity) error {
	items, total, err := requireResources(act)
	if err != nil {
		return err
	}
	galley, err := requireBuilding(tx, act.FromBuilding, "galley")
	if err != nil {
		return err
	}
	if !pc.Cfg.IsVesselType(galley.Type) {
		return fmt.Errorf("building %s is a %s, not a vessel", galley.ID, galley.Type)
	}
	porter, err := store.GetCitizen(tx, act.Citizen)
	if err != nil {
		return err
	}
	if act.ContractID == nil || *act.ContractID == "" {
		return fmt.Errorf("activity %s has no import contract", act.ID)
	}
	contract, err := store.GetContract(tx, *act.ContractID)
	if err != nil {
		return err
	}

	merchant := galley.Operator
	if merchant == "" {
		merchant = galley.Owner
	}

	// Precondition pass: cargo present under the merchant, porter has room.
	hold := ledger.BuildingHolder(galley.ID)
	for _, it := range items {
		have, err := ledger.Stock(tx, it.Type, hold, merchant)
		if err != nil {
			return err
		}
		if have < it.Amount {
			return fmt.Errorf("%d %s in galley %s, need %d: %w",
				have, it.Type, galley.ID, it.Amount, ledger.ErrInsufficientStock)
		}
	}
	if err := checkCarry(tx, pc, porter, total); err != nil {
		return err
	}

	dest := ledger.CitizenHolder(porter.Username)
	for _, it := range items {
		if err := ledger.Transfer(tx, ledger.TransferReq{
			Type:      it.Type,
			Amount:    it.Amount,
			From:      hold,
			FromOwner: merchant,
			To:        dest,
			NewOwner:  contract.Buyer,
		}); err != nil {
			return err
		}
	}
	return store.TouchContractExecuted(tx, contract.ID, pc.Now)
}
