package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/talmora/rialto/internal/model"
)

// DueActivities returns activities whose time window has elapsed and whose
// status is still non-terminal, oldest first. A terminal record never
// satisfies the predicate, which is what makes re-runs idempotent. citizen
// scopes the batch to one actor when non-empty.
func (s *Store) DueActivities(now time.Time, citizen string) ([]model.Activity, error) {
	query := `SELECT * FROM activities WHERE status = ? AND end_at <= ?`
	args := []interface{}{model.StatusCreated, now}
	if citizen != "" {
		query += ` AND citizen = ?`
		args = append(args, citizen)
	}
	query += ` ORDER BY end_at, id`

	var acts []model.Activity
	if err := s.conn.Select(&acts, query, args...); err != nil {
		return nil, fmt.Errorf("select due activities: %w", err)
	}
	return acts, nil
}

// GetActivity fetches one activity by id.
func GetActivity(q sqlx.Queryer, id string) (*model.Activity, error) {
	var a model.Activity
	if err := sqlx.Get(q, &a, `SELECT * FROM activities WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "activity", id)
	}
	return &a, nil
}

// CreateActivity inserts a new activity record.
func CreateActivity(q sqlx.Ext, a *model.Activity) error {
	if a.Status == "" {
		a.Status = model.StatusCreated
	}
	_, err := q.Exec(`INSERT INTO activities
		(id, type, citizen, from_building, to_building, transporter,
		 path_json, resources_json, contract_id, notes, status, start_at, end_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Type, a.Citizen, a.FromBuilding, a.ToBuilding, a.Transporter,
		a.PathJSON, a.ResourcesJSON, a.ContractID, a.Notes, a.Status, a.StartAt, a.EndAt)
	if err != nil {
		return fmt.Errorf("insert activity %s: %w", a.ID, err)
	}
	return nil
}

// MarkProcessed records the terminal processed status. The status guard in
// the WHERE clause makes the transition single-shot even if a record is
// somehow selected twice.
func (s *Store) MarkProcessed(id string) error {
	_, err := s.conn.Exec(
		`UPDATE activities SET status = ? WHERE id = ? AND status = ?`,
		model.StatusProcessed, id, model.StatusCreated)
	if err != nil {
		return fmt.Errorf("mark processed %s: %w", id, err)
	}
	return nil
}

// MarkFailed records the terminal failed status and appends the reason to
// the activity's notes for operators.
func (s *Store) MarkFailed(id, reason string) error {
	reason = strings.TrimSpace(reason)
	_, err := s.conn.Exec(
		`UPDATE activities
		 SET status = ?,
		     notes = CASE WHEN notes = '' THEN ? ELSE notes || char(10) || ? END
		 WHERE id = ? AND status = ?`,
		model.StatusFailed, "failed: "+reason, "failed: "+reason, id, model.StatusCreated)
	if err != nil {
		return fmt.Errorf("mark failed %s: %w", id, err)
	}
	return nil
}

// AppendActivityNote adds a line to an activity's notes without touching
// its status.
func AppendActivityNote(q sqlx.Ext, id, note string) error {
	_, err := q.Exec(
		`UPDATE activities
		 SET notes = CASE WHEN notes = '' THEN ? ELSE notes || char(10) || ? END
		 WHERE id = ?`,
		note, note, id)
	if err != nil {
		return fmt.Errorf("append note %s: %w", id, err)
	}
	return nil
}
