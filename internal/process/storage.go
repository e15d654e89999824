package process

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/talmora/rialto/internal/ledger"
	"github.com/talmora/rialto/internal/model"
	"github.com/talmora/rialto/internal/store"
)

// DeliverToStorage moves goods from the mover's inventory (or an explicit
// source building) into a storage facility. Deposited goods belong to the
// linked contract's buyer, or to the mover when no contract is linked.
type DeliverToStorage struct{}

func (p *DeliverToStorage) Type() string { return TypeDeliverToStorage }

func (p *DeliverToStorage) Process(ctx context.Context, pc *ProcCtx, tx *sqlx.Tx, act *model.Activity) error {
	items, total, err := requireResources(act)
	if err != nil {
		return err
	}
	dest, err := requireBuilding(tx, act.ToBuilding, "destination")
	if err != nil {
		return err
	}

	src := ledger.CitizenHolder(act.Citizen)
	if act.FromBuilding != nil && *act.FromBuilding != "" {
		srcB, err := store.GetBuilding(tx, *act.FromBuilding)
		if err != nil {
			return err
		}
		src = ledger.BuildingHolder(srcB.ID)
	}

	owner := act.Citizen
	if act.ContractID != nil && *act.ContractID != "" {
		contract, err := store.GetContract(tx, *act.ContractID)
		if err != nil {
			return err
		}
		owner = contract.Buyer
	}

	// Precondition pass.
	for _, it := range items {
		have, err := ledger.Stock(tx, it.Type, src, "")
		if err != nil {
			return err
		}
		if have < it.Amount {
			return fmt.Errorf("%d %s at %s, need %d: %w",
				have, it.Type, src.ID, it.Amount, ledger.ErrInsufficientStock)
		}
	}
	if err := checkStorage(tx, pc, dest, total); err != nil {
		return err
	}

	for _, it := range items {
		if err := ledger.Transfer(tx, ledger.TransferReq{
			Type:     it.Type,
			Amount:   it.Amount,
			From:     src,
			To:       ledger.BuildingHolder(dest.ID),
			NewOwner: owner,
		}); err != nil {
			return err
		}
	}
	return nil
}

// FetchFromStorage withdraws goods previously stored under a contract back
// into the mover's personal inventory, still owned by the contract's buyer.
type FetchFromStorage struct{}

func (p *FetchFromStorage) Type() string { return TypeFetchFromStorage }

func (p *FetchFromStorage) Process(ctx context.Context, pc *ProcCtx, tx *sqlx.Tx, act *model.Activity) error {
	items, total, err := requireResources(act)
	if err != nil {
		return err
	}
	storage, err := requireBuilding(tx, act.FromBuilding, "storage")
	if err != nil {
		return err
	}
	mover, err := store.GetCitizen(tx, act.Citizen)
	if err != nil {
		return err
	}
	if act.ContractID == nil || *act.ContractID == "" {
		return fmt.Errorf("activity %s has no linked storage contract", act.ID)
	}
	contract, err := store.GetContract(tx, *act.ContractID)
	if err != nil {
		return err
	}

	// Only stacks owned by the contract's buyer may leave the facility.
	src := ledger.BuildingHolder(storage.ID)
	for _, it := range items {
		have, err := ledger.Stock(tx, it.Type, src, contract.Buyer)
		if err != nil {
			return err
		}
		if have < it.Amount {
			return fmt.Errorf("%d %s stored for %s at %s, need %d: %w",
				have, it.Type, contract.Buyer, storage.ID, it.Amount, ledger.ErrInsufficientStock)
		}
	}
	if err := checkCarry(tx, pc, mover, total); err != nil {
		return err
	}

	dest := ledger.CitizenHolder(mover.Username)
	for _, it := range items {
		if err := ledger.Transfer(tx, ledger.TransferReq{
			Type:      it.Type,
			Amount:    it.Amount,
			From:      src,
			FromOwner: contract.Buyer,
			To:        dest,
			NewOwner:  contract.Buyer,
		}); err != nil {
			return err
		}
	}
	return store.TouchContractExecuted(tx, contract.ID, pc.Now)
}
