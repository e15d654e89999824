package pipeline

import (
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/talmora/rialto/internal/config"
	"github.com/talmora/rialto/internal/store"
)

// ScanArrivals promotes in-transit vessels whose scheduled arrival time has
// passed to constructed. These deliveries complete purely by elapsed time;
// no activity record is involved.
func ScanArrivals(st *store.Store, cfg *config.Config, now time.Time, dryRun bool) (int, error) {
	vessels, err := st.DueVesselArrivals(now, cfg.Vessels.Types)
	if err != nil {
		return 0, err
	}
	for _, v := range vessels {
		slog.Info("vessel arrived",
			"building", v.ID,
			"type", v.Type,
			"operator", v.Operator,
			"scheduled", v.ArrivesAt,
		)
		if dryRun {
			continue
		}
		if err := st.WithTx(func(tx *sqlx.Tx) error {
			return store.MarkConstructed(tx, v.ID)
		}); err != nil {
			return 0, err
		}
	}
	return len(vessels), nil
}
