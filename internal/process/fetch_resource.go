package process

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/talmora/rialto/internal/ledger"
	"github.com/talmora/rialto/internal/model"
	"github.com/talmora/rialto/internal/store"
)

// FetchResource moves goods from a source building into the mover's
// personal inventory, paying the seller under the linked contract. With no
// contract the goods are free and end up owned by the mover.
type FetchResource struct{}

func (p *FetchResource) Type() string { return TypeFetchResource }

func (p *FetchResource) Process(ctx context.Context, pc *ProcCtx, tx *sqlx.Tx, act *model.Activity) error {
	items, total, err := requireResources(act)
	if err != nil {
		return err
	}
	source, err := requireBuilding(tx, act.FromBuilding, "source")
	if err != nil {
		return err
	}
	mover, err := store.GetCitizen(tx, act.Citizen)
	if err != nil {
		return err
	}

	buyer := mover.Username
	seller := source.Operator
	if seller == "" {
		seller = source.Owner
	}
	price := decimal.Zero
	var contract *model.Contract
	if act.ContractID != nil && *act.ContractID != "" {
		contract, err = store.GetContract(tx, *act.ContractID)
		if err != nil {
			return err
		}
		buyer = contract.Buyer
		seller = contract.Seller
		for _, it := range items {
			if it.Type == contract.ResourceType {
				price = price.Add(contract.PricePerResource.Mul(decimal.NewFromInt(it.Amount)))
			}
		}
	}

	// Precondition pass: stock, funds, carry capacity. No writes yet.
	src := ledger.BuildingHolder(source.ID)
	for _, it := range items {
		have, err := ledger.Stock(tx, it.Type, src, "")
		if err != nil {
			return err
		}
		if have < it.Amount {
			return fmt.Errorf("%d %s at %s, need %d: %w",
				have, it.Type, source.ID, it.Amount, ledger.ErrInsufficientStock)
		}
	}
	if price.IsPositive() {
		if err := store.RequireFunds(tx, buyer, price); err != nil {
			return err
		}
	}
	if err := checkCarry(tx, pc, mover, total); err != nil {
		return err
	}

	// Effects.
	dest := ledger.CitizenHolder(mover.Username)
	for _, it := range items {
		if err := ledger.Transfer(tx, ledger.TransferReq{
			Type:     it.Type,
			Amount:   it.Amount,
			From:     src,
			To:       dest,
			NewOwner: buyer,
		}); err != nil {
			return err
		}
	}
	if price.IsPositive() && buyer != seller {
		if err := store.AdjustDucats(tx, buyer, price.Neg()); err != nil {
			return err
		}
		if err := store.AdjustDucats(tx, seller, price); err != nil {
			return err
		}
		executed := pc.Now
		if err := store.InsertTransaction(tx, &model.Transaction{
			Type:       "resource_purchase",
			Buyer:      buyer,
			Seller:     seller,
			Price:      price,
			Asset:      act.ID,
			CreatedAt:  pc.Now,
			ExecutedAt: &executed,
		}); err != nil {
			return err
		}
	}
	if contract != nil {
		if err := store.TouchContractExecuted(tx, contract.ID, pc.Now); err != nil {
			return err
		}
	}

	// The mover walked to the source to pick the goods up.
	return moveCitizenTo(tx, mover.Username, source)
}
