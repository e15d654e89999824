package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/talmora/rialto/internal/model"
)

// ErrInsufficientFunds is returned when a strict debit would overdraw a
// citizen's balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// GetCitizen fetches one citizen by username.
func GetCitizen(q sqlx.Queryer, username string) (*model.Citizen, error) {
	var c model.Citizen
	if err := sqlx.Get(q, &c, `SELECT * FROM citizens WHERE username = ?`, username); err != nil {
		return nil, notFound(err, "citizen", username)
	}
	return &c, nil
}

// CreateCitizen inserts a citizen record.
func CreateCitizen(q sqlx.Ext, c *model.Citizen) error {
	_, err := q.Exec(`INSERT INTO citizens
		(username, ducats, influence, position_json, carry_capacity, in_venice, ate_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Username, c.Ducats, c.Influence, c.PositionJSON,
		c.CarryCapacity, c.InVenice, c.AteAt)
	if err != nil {
		return fmt.Errorf("insert citizen %s: %w", c.Username, err)
	}
	return nil
}

// AdjustDucats applies a signed balance change without a floor. Tolls and
// other owed fees may drive a balance negative; the debt is still owed.
func AdjustDucats(q sqlx.Ext, username string, delta decimal.Decimal) error {
	c, err := GetCitizen(q, username)
	if err != nil {
		return err
	}
	_, err = q.Exec(`UPDATE citizens SET ducats = ? WHERE username = ?`,
		c.Ducats.Add(delta), username)
	if err != nil {
		return fmt.Errorf("adjust ducats %s: %w", username, err)
	}
	return nil
}

// RequireFunds checks that a citizen can cover amount.
func RequireFunds(q sqlx.Queryer, username string, amount decimal.Decimal) error {
	c, err := GetCitizen(q, username)
	if err != nil {
		return err
	}
	if c.Ducats.LessThan(amount) {
		return fmt.Errorf("citizen %s has %s, needs %s: %w",
			username, c.Ducats, amount, ErrInsufficientFunds)
	}
	return nil
}

// AdjustInfluence applies a signed influence change.
func AdjustInfluence(q sqlx.Ext, username string, delta int64) error {
	res, err := q.Exec(`UPDATE citizens SET influence = influence + ? WHERE username = ?`,
		delta, username)
	if err != nil {
		return fmt.Errorf("adjust influence %s: %w", username, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("citizen %q: %w", username, ErrNotFound)
	}
	return nil
}

// SetCitizenPosition relocates a citizen.
func SetCitizenPosition(q sqlx.Ext, username, positionJSON string) error {
	res, err := q.Exec(`UPDATE citizens SET position_json = ? WHERE username = ?`,
		positionJSON, username)
	if err != nil {
		return fmt.Errorf("set position %s: %w", username, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("citizen %q: %w", username, ErrNotFound)
	}
	return nil
}

// SetAteAt updates a citizen's last-fed timestamp.
func SetAteAt(q sqlx.Ext, username string, at time.Time) error {
	_, err := q.Exec(`UPDATE citizens SET ate_at = ? WHERE username = ?`, at, username)
	if err != nil {
		return fmt.Errorf("set ate_at %s: %w", username, err)
	}
	return nil
}

// MarkDeparted records that a citizen has left the city.
func MarkDeparted(q sqlx.Ext, username string) error {
	_, err := q.Exec(`UPDATE citizens SET in_venice = 0 WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("mark departed %s: %w", username, err)
	}
	return nil
}
