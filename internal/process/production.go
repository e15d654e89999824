package process

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/talmora/rialto/internal/ledger"
	"github.com/talmora/rialto/internal/model"
)

// Production runs the workshop's recipe: inputs owned by the operator are
// consumed at the workplace and outputs appear there, also owned by the
// operator. Storage must have room for the outputs once the inputs are
// gone.
type Production struct{}

func (p *Production) Type() string { return TypeProduction }

func (p *Production) Process(ctx context.Context, pc *ProcCtx, tx *sqlx.Tx, act *model.Activity) error {
	workshop, err := requireBuilding(tx, act.FromBuilding, "workshop")
	if err != nil {
		return err
	}
	recipe, ok := pc.Cfg.RecipeFor(workshop.Type)
	if !ok {
		return fmt.Errorf("no recipe for building type %q", workshop.Type)
	}
	operator := workshop.Operator
	if operator == "" {
		operator = workshop.Owner
	}
	if operator == "" {
		return fmt.Errorf("workshop %s has no operator", workshop.ID)
	}

	at := ledger.BuildingHolder(workshop.ID)

	// Precondition pass: every input present and owned by the operator.
	var totalIn, totalOut int64
	for resType, amount := range recipe.Inputs {
		have, err := ledger.Stock(tx, resType, at, operator)
		if err != nil {
			return err
		}
		if have < amount {
			return fmt.Errorf("%d %s owned by %s at %s, recipe needs %d: %w",
				have, resType, operator, workshop.ID, amount, ledger.ErrInsufficientStock)
		}
		totalIn += amount
	}
	for _, amount := range recipe.Outputs {
		totalOut += amount
	}
	// Room for outputs is judged after the inputs are removed.
	if err := checkStorage(tx, pc, workshop, totalOut-totalIn); err != nil {
		return err
	}

	for resType, amount := range recipe.Inputs {
		if err := ledger.Consume(tx, resType, amount, at, operator); err != nil {
			return err
		}
	}
	for resType, amount := range recipe.Outputs {
		if err := ledger.Deposit(tx, resType, amount, at, operator); err != nil {
			return err
		}
	}
	return nil
}
