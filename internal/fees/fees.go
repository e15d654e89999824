// Package fees derives the gondola toll from the geometry of a travel path
// and applies it as a ledger transaction. The toll is charged for having
// traveled at all: it runs whether or not the activity's own processor
// succeeded.
package fees

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/talmora/rialto/internal/config"
	"github.com/talmora/rialto/internal/geo"
	"github.com/talmora/rialto/internal/model"
	"github.com/talmora/rialto/internal/store"
)

// ModeGondola is the fee-bearing transport mode tag on waypoints.
const ModeGondola = "gondola"

// Calculator computes and applies gondola fees.
type Calculator struct {
	base     decimal.Decimal
	perKm    decimal.Decimal
	fallback string
	cfg      *config.Config
}

// NewCalculator builds a Calculator from config.
func NewCalculator(cfg *config.Config) *Calculator {
	return &Calculator{
		base:     decimal.NewFromFloat(cfg.Fees.GondolaBase),
		perKm:    decimal.NewFromFloat(cfg.Fees.GondolaPerKm),
		fallback: cfg.Fees.FallbackRecipient,
		cfg:      cfg,
	}
}

// GondolaKm sums the great-circle length of the path segments traveled by
// gondola: a segment counts when both of its endpoints carry the
// fee-bearing mode.
func GondolaKm(path []model.Waypoint) float64 {
	var km float64
	for i := 0; i+1 < len(path); i++ {
		if path[i].TransportMode != ModeGondola || path[i+1].TransportMode != ModeGondola {
			continue
		}
		km += geo.HaversineKm(path[i].Lat, path[i].Lng, path[i+1].Lat, path[i+1].Lng)
	}
	return km
}

// Fee returns the toll for a path, zero when no gondola distance accrued.
func (c *Calculator) Fee(path []model.Waypoint) decimal.Decimal {
	km := GondolaKm(path)
	if km <= 0 {
		return decimal.Zero
	}
	return c.base.Add(c.perKm.Mul(decimal.NewFromFloat(km)))
}

// Apply computes the toll for the activity's path and, if positive, debits
// the traveler and credits the resolved recipient, recording a
// transport_fee transaction. A malformed path accrues no toll.
func (c *Calculator) Apply(q sqlx.Ext, act *model.Activity, now time.Time) error {
	path, err := act.Path()
	if err != nil {
		slog.Warn("fee skipped, malformed path", "activity", act.ID, "error", err)
		return nil
	}
	fee := c.Fee(path)
	if fee.IsZero() {
		return nil
	}

	recipient := c.resolveRecipient(q, act, path)
	if recipient == act.Citizen {
		// Traveler is their own ferryman; nothing changes hands.
		return nil
	}

	if err := store.AdjustDucats(q, act.Citizen, fee.Neg()); err != nil {
		return fmt.Errorf("debit traveler: %w", err)
	}
	if err := store.AdjustDucats(q, recipient, fee); err != nil {
		return fmt.Errorf("credit recipient: %w", err)
	}
	executed := now
	if err := store.InsertTransaction(q, &model.Transaction{
		Type:       "transport_fee",
		Buyer:      act.Citizen,
		Seller:     recipient,
		Price:      fee,
		Asset:      act.ID,
		CreatedAt:  now,
		ExecutedAt: &executed,
	}); err != nil {
		return err
	}

	slog.Info("gondola fee applied",
		"activity", act.ID,
		"traveler", act.Citizen,
		"recipient", recipient,
		"fee", fee,
	)
	return nil
}

// resolveRecipient picks who is paid, in order: the transporter named on
// the activity when it resolves to a real citizen, then the operator of a
// dock building on the path, then the configured fallback.
func (c *Calculator) resolveRecipient(q sqlx.Ext, act *model.Activity, path []model.Waypoint) string {
	if act.Transporter != nil && *act.Transporter != "" {
		if _, err := store.GetCitizen(q, *act.Transporter); err == nil {
			return *act.Transporter
		} else if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("transporter lookup failed", "transporter", *act.Transporter, "error", err)
		}
	}
	for _, wp := range path {
		if wp.BuildingID == "" {
			continue
		}
		b, err := store.GetBuilding(q, wp.BuildingID)
		if err != nil {
			continue
		}
		if c.cfg.IsDockType(b.Type) && b.Operator != "" {
			return b.Operator
		}
	}
	return c.fallback
}
