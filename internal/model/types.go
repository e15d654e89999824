// Package model defines the persisted record types the pipeline reads and
// mutates: activities, resource stacks, buildings, citizens, contracts, and
// the fee ledger.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActivityStatus is the lifecycle state of an activity record.
// Transitions are created → processed or created → failed, exactly once.
type ActivityStatus string

const (
	StatusCreated   ActivityStatus = "created"
	StatusProcessed ActivityStatus = "processed"
	StatusFailed    ActivityStatus = "failed"
)

// Activity is a scheduled, time-boxed unit of work performed by a citizen.
// The pipeline resolves each activity once its end time has passed.
type Activity struct {
	ID            string         `db:"id"`
	Type          string         `db:"type"`
	Citizen       string         `db:"citizen"`
	FromBuilding  *string        `db:"from_building"`
	ToBuilding    *string        `db:"to_building"`
	Transporter   *string        `db:"transporter"`
	PathJSON      string         `db:"path_json"`
	ResourcesJSON string         `db:"resources_json"`
	ContractID    *string        `db:"contract_id"`
	Notes         string         `db:"notes"`
	Status        ActivityStatus `db:"status"`
	StartAt       time.Time      `db:"start_at"`
	EndAt         time.Time      `db:"end_at"`
}

// DurationMinutes is the scheduled length of the activity in whole minutes.
func (a *Activity) DurationMinutes() int64 {
	d := a.EndAt.Sub(a.StartAt)
	if d < 0 {
		return 0
	}
	return int64(d / time.Minute)
}

// Waypoint is one point on a travel path. TransportMode tags how the leg
// through this point was traveled; BuildingID is set when the point is a
// dock or other structure rather than open water.
type Waypoint struct {
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	TransportMode string  `json:"transportMode,omitempty"`
	BuildingID    string  `json:"buildingId,omitempty"`
}

// ResourceAmount is one line of an activity's resource payload.
type ResourceAmount struct {
	Type   string `json:"type"`
	Amount int64  `json:"amount"`
}

// HolderKind distinguishes stacks sitting in a building from stacks carried
// by a citizen.
type HolderKind string

const (
	HolderBuilding HolderKind = "building"
	HolderCitizen  HolderKind = "citizen"
)

// ResourceStack is a quantity of one resource type in the custody of a
// holder. Owner may differ from the holder: goods on a porter's back can
// belong to the buyer who paid for them. A persisted stack always has
// Count > 0; a stack drained to zero is deleted.
type ResourceStack struct {
	ID         string     `db:"id"`
	Type       string     `db:"type"`
	HolderID   string     `db:"holder_id"`
	HolderKind HolderKind `db:"holder_kind"`
	Owner      string     `db:"owner"`
	Count      int64      `db:"count"`
}

// Building is a stationary container. Constructible buildings track the
// work minutes still owed; vessel-kind buildings carry a scheduled arrival
// time instead and are promoted to constructed by the arrival scanner.
type Building struct {
	ID                           string     `db:"id"`
	Type                         string     `db:"type"`
	Category                     string     `db:"category"`
	Owner                        string     `db:"owner"`
	Operator                     string     `db:"operator"`
	PositionJSON                 string     `db:"position_json"`
	StorageCapacity              int64      `db:"storage_capacity"`
	ConstructionMinutesRemaining int64      `db:"construction_minutes_remaining"`
	IsConstructed                bool       `db:"is_constructed"`
	ArrivesAt                    *time.Time `db:"arrives_at"`
}

// Citizen is an economic actor with a balance, a location, and a personal
// carrying capacity. CarryCapacity of zero means the configured default.
type Citizen struct {
	Username      string          `db:"username"`
	Ducats        decimal.Decimal `db:"ducats"`
	Influence     int64           `db:"influence"`
	PositionJSON  string          `db:"position_json"`
	CarryCapacity int64           `db:"carry_capacity"`
	InVenice      bool            `db:"in_venice"`
	AteAt         *time.Time      `db:"ate_at"`
}

// Contract links a buyer and a seller over a resource type. The pipeline
// reads contracts to resolve the rightful owner of goods moving through
// intermediate custody; it never changes their terms.
type Contract struct {
	ID               string          `db:"id"`
	Type             string          `db:"type"`
	Buyer            string          `db:"buyer"`
	Seller           string          `db:"seller"`
	ResourceType     string          `db:"resource_type"`
	PricePerResource decimal.Decimal `db:"price_per_resource"`
	TargetAmount     int64           `db:"target_amount"`
	Status           string          `db:"status"`
	LastExecutedAt   *time.Time      `db:"last_executed_at"`
}

// Transaction is one entry in the fee/payment ledger: Buyer pays Seller.
type Transaction struct {
	ID         string          `db:"id"`
	Type       string          `db:"type"`
	Buyer      string          `db:"buyer"`
	Seller     string          `db:"seller"`
	Price      decimal.Decimal `db:"price"`
	Asset      string          `db:"asset"`
	CreatedAt  time.Time       `db:"created_at"`
	ExecutedAt *time.Time      `db:"executed_at"`
}

// Position is a geographic point, decoded from a record's position JSON.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
