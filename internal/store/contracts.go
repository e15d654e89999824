package store

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/google/uuid"

	"github.com/talmora/rialto/internal/model"
)

// GetContract fetches one contract by id.
func GetContract(q sqlx.Queryer, id string) (*model.Contract, error) {
	var c model.Contract
	if err := sqlx.Get(q, &c, `SELECT * FROM contracts WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "contract", id)
	}
	return &c, nil
}

// CreateContract inserts a contract record.
func CreateContract(q sqlx.Ext, c *model.Contract) error {
	_, err := q.Exec(`INSERT INTO contracts
		(id, type, buyer, seller, resource_type, price_per_resource,
		 target_amount, status, last_executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Type, c.Buyer, c.Seller, c.ResourceType, c.PricePerResource,
		c.TargetAmount, c.Status, c.LastExecutedAt)
	if err != nil {
		return fmt.Errorf("insert contract %s: %w", c.ID, err)
	}
	return nil
}

// TouchContractExecuted stamps a contract's last-fetched time.
func TouchContractExecuted(q sqlx.Ext, id string, at time.Time) error {
	_, err := q.Exec(`UPDATE contracts SET last_executed_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("touch contract %s: %w", id, err)
	}
	return nil
}

// InsertTransaction records one executed ledger entry: buyer pays seller.
func InsertTransaction(q sqlx.Ext, t *model.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := q.Exec(`INSERT INTO transactions
		(id, type, buyer, seller, price, asset, created_at, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Type, t.Buyer, t.Seller, t.Price, t.Asset, t.CreatedAt, t.ExecutedAt)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", t.ID, err)
	}
	return nil
}
