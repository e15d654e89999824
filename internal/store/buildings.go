package store

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/talmora/rialto/internal/model"
)

// GetBuilding fetches one building by id.
func GetBuilding(q sqlx.Queryer, id string) (*model.Building, error) {
	var b model.Building
	if err := sqlx.Get(q, &b, `SELECT * FROM buildings WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "building", id)
	}
	return &b, nil
}

// CreateBuilding inserts a building record.
func CreateBuilding(q sqlx.Ext, b *model.Building) error {
	_, err := q.Exec(`INSERT INTO buildings
		(id, type, category, owner, operator, position_json, storage_capacity,
		 construction_minutes_remaining, is_constructed, arrives_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Type, b.Category, b.Owner, b.Operator, b.PositionJSON,
		b.StorageCapacity, b.ConstructionMinutesRemaining, b.IsConstructed, b.ArrivesAt)
	if err != nil {
		return fmt.Errorf("insert building %s: %w", b.ID, err)
	}
	return nil
}

// DueVesselArrivals returns unarrived vessels whose scheduled arrival time
// has passed. types is the vessel building-type set from config.
func (s *Store) DueVesselArrivals(now time.Time, types []string) ([]model.Building, error) {
	if len(types) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT * FROM buildings
		 WHERE is_constructed = 0 AND arrives_at IS NOT NULL AND arrives_at <= ?
		   AND type IN (?)
		 ORDER BY arrives_at, id`, now, types)
	if err != nil {
		return nil, fmt.Errorf("vessel arrival query: %w", err)
	}
	var vessels []model.Building
	if err := s.conn.Select(&vessels, s.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select vessel arrivals: %w", err)
	}
	return vessels, nil
}

// MarkConstructed flips a building to constructed.
func MarkConstructed(q sqlx.Ext, id string) error {
	_, err := q.Exec(`UPDATE buildings SET is_constructed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark constructed %s: %w", id, err)
	}
	return nil
}

// ApplyConstructionWork reduces the minutes remaining on a site; at zero
// the site is marked constructed and given an operator.
func ApplyConstructionWork(q sqlx.Ext, id string, minutes int64, operator string) error {
	b, err := GetBuilding(q, id)
	if err != nil {
		return err
	}
	remaining := b.ConstructionMinutesRemaining - minutes
	if remaining < 0 {
		remaining = 0
	}
	if remaining == 0 {
		op := b.Operator
		if op == "" {
			op = operator
		}
		_, err = q.Exec(
			`UPDATE buildings
			 SET construction_minutes_remaining = 0, is_constructed = 1, operator = ?
			 WHERE id = ?`, op, id)
	} else {
		_, err = q.Exec(
			`UPDATE buildings SET construction_minutes_remaining = ? WHERE id = ?`,
			remaining, id)
	}
	if err != nil {
		return fmt.Errorf("apply construction work %s: %w", id, err)
	}
	return nil
}
