// Package ledger holds the resource-stack primitives: who holds how much
// of what, and who owns it. The ledger enforces quantity and capacity;
// deciding who the owner of moved goods should be is the caller's policy.
package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/talmora/rialto/internal/model"
)

var (
	// ErrInsufficientStock is returned when a withdrawal exceeds the
	// quantity held at the source.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrStorageFull is returned when a deposit would exceed a building's
	// storage capacity.
	ErrStorageFull = errors.New("storage capacity exceeded")
	// ErrCarryCapacity is returned when a pickup would exceed a citizen's
	// carrying capacity.
	ErrCarryCapacity = errors.New("carry capacity exceeded")
)

// Holder identifies where a stack physically sits.
type Holder struct {
	ID   string
	Kind model.HolderKind
}

// BuildingHolder is a convenience constructor.
func BuildingHolder(id string) Holder {
	return Holder{ID: id, Kind: model.HolderBuilding}
}

// CitizenHolder is a convenience constructor.
func CitizenHolder(username string) Holder {
	return Holder{ID: username, Kind: model.HolderCitizen}
}

// TransferReq describes one atomic stack movement. FromOwner narrows the
// withdrawal to stacks with that owner; empty draws across all owners at
// the source.
type TransferReq struct {
	Type      string
	Amount    int64
	From      Holder
	FromOwner string
	To        Holder
	NewOwner  string
}

// Stock returns the quantity of one resource type held at a holder,
// optionally filtered to a single owner.
func Stock(q sqlx.Queryer, resType string, h Holder, owner string) (int64, error) {
	query := `SELECT COALESCE(SUM(count), 0) FROM resource_stacks
		WHERE type = ? AND holder_id = ? AND holder_kind = ?`
	args := []interface{}{resType, h.ID, h.Kind}
	if owner != "" {
		query += ` AND owner = ?`
		args = append(args, owner)
	}
	var total int64
	if err := sqlx.Get(q, &total, query, args...); err != nil {
		return 0, fmt.Errorf("stock %s at %s: %w", resType, h.ID, err)
	}
	return total, nil
}

// StoredAt returns the total quantity across all stacks at a holder.
func StoredAt(q sqlx.Queryer, h Holder) (int64, error) {
	var total int64
	err := sqlx.Get(q, &total,
		`SELECT COALESCE(SUM(count), 0) FROM resource_stacks
		 WHERE holder_id = ? AND holder_kind = ?`, h.ID, h.Kind)
	if err != nil {
		return 0, fmt.Errorf("stored at %s: %w", h.ID, err)
	}
	return total, nil
}

// StacksAt lists the stacks at a holder, optionally filtered by owner.
func StacksAt(q sqlx.Queryer, h Holder, owner string) ([]model.ResourceStack, error) {
	query := `SELECT * FROM resource_stacks WHERE holder_id = ? AND holder_kind = ?`
	args := []interface{}{h.ID, h.Kind}
	if owner != "" {
		query += ` AND owner = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY type, owner`
	var stacks []model.ResourceStack
	if err := sqlx.Select(q, &stacks, query, args...); err != nil {
		return nil, fmt.Errorf("stacks at %s: %w", h.ID, err)
	}
	return stacks, nil
}

// Deposit merges amount into the stack matching type+holder+owner, creating
// it if absent. Capacity is not checked here; callers run the capacity
// check as part of their precondition pass.
func Deposit(q sqlx.Ext, resType string, amount int64, h Holder, owner string) error {
	if amount <= 0 {
		return fmt.Errorf("deposit of %d %s", amount, resType)
	}
	res, err := q.Exec(
		`UPDATE resource_stacks SET count = count + ?
		 WHERE type = ? AND holder_id = ? AND holder_kind = ? AND owner = ?`,
		amount, resType, h.ID, h.Kind, owner)
	if err != nil {
		return fmt.Errorf("deposit %s at %s: %w", resType, h.ID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = q.Exec(
		`INSERT INTO resource_stacks (id, type, holder_id, holder_kind, owner, count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), resType, h.ID, h.Kind, owner, amount)
	if err != nil {
		return fmt.Errorf("deposit %s at %s: %w", resType, h.ID, err)
	}
	return nil
}

// Consume withdraws amount of a resource from a holder, deleting any stack
// drained to zero. With owner set, only that owner's stacks are touched.
// Fails with ErrInsufficientStock before any write when the holder lacks
// the quantity.
func Consume(q sqlx.Ext, resType string, amount int64, h Holder, owner string) error {
	if amount <= 0 {
		return fmt.Errorf("consume of %d %s", amount, resType)
	}
	stacks, err := stacksOf(q, resType, h, owner)
	if err != nil {
		return err
	}
	var total int64
	for _, st := range stacks {
		total += st.Count
	}
	if total < amount {
		return fmt.Errorf("%d %s at %s, need %d: %w",
			total, resType, h.ID, amount, ErrInsufficientStock)
	}

	remaining := amount
	for _, st := range stacks {
		if remaining == 0 {
			break
		}
		take := st.Count
		if take > remaining {
			take = remaining
		}
		if take == st.Count {
			if _, err := q.Exec(`DELETE FROM resource_stacks WHERE id = ?`, st.ID); err != nil {
				return fmt.Errorf("drain stack %s: %w", st.ID, err)
			}
		} else {
			if _, err := q.Exec(
				`UPDATE resource_stacks SET count = count - ? WHERE id = ?`,
				take, st.ID); err != nil {
				return fmt.Errorf("decrement stack %s: %w", st.ID, err)
			}
		}
		remaining -= take
	}
	return nil
}

// Transfer atomically moves quantity between holders: the source decrement
// must succeed before the destination write is attempted. Run inside a
// store transaction for all-or-nothing semantics across multiple transfers.
func Transfer(q sqlx.Ext, req TransferReq) error {
	if err := Consume(q, req.Type, req.Amount, req.From, req.FromOwner); err != nil {
		return err
	}
	return Deposit(q, req.Type, req.Amount, req.To, req.NewOwner)
}

// CheckCapacity reports whether a building can absorb additional quantity.
func CheckCapacity(q sqlx.Queryer, buildingID string, capacity, additional int64) (bool, error) {
	stored, err := StoredAt(q, BuildingHolder(buildingID))
	if err != nil {
		return false, err
	}
	return stored+additional <= capacity, nil
}

// CheckCarryCapacity reports whether a citizen can pick up additional
// quantity.
func CheckCarryCapacity(q sqlx.Queryer, username string, capacity, additional int64) (bool, error) {
	carried, err := StoredAt(q, CitizenHolder(username))
	if err != nil {
		return false, err
	}
	return carried+additional <= capacity, nil
}

func stacksOf(q sqlx.Ext, resType string, h Holder, owner string) ([]model.ResourceStack, error) {
	query := `SELECT * FROM resource_stacks
		WHERE type = ? AND holder_id = ? AND holder_kind = ?`
	args := []interface{}{resType, h.ID, h.Kind}
	if owner != "" {
		query += ` AND owner = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY count DESC, id`
	var stacks []model.ResourceStack
	if err := sqlx.Select(q, &stacks, query, args...); err != nil {
		return nil, fmt.Errorf("stacks of %s at %s: %w", resType, h.ID, err)
	}
	return stacks, nil
}
