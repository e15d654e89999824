package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/talmora/rialto/internal/config"
	"github.com/talmora/rialto/internal/fees"
	"github.com/talmora/rialto/internal/geo"
	"github.com/talmora/rialto/internal/ledger"
	"github.com/talmora/rialto/internal/model"
	"github.com/talmora/rialto/internal/process"
	"github.com/talmora/rialto/internal/store"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newRunner(t *testing.T) (*store.Store, *Runner) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return st, &Runner{
		Store:    st,
		Cfg:      cfg,
		Registry: process.NewRegistry(),
		Fees:     fees.NewCalculator(cfg),
		Now:      testNow,
	}
}

func seedCitizen(t *testing.T, st *store.Store, name string, ducats int64) {
	t.Helper()
	if err := store.CreateCitizen(st.DB(), &model.Citizen{
		Username: name, Ducats: decimal.NewFromInt(ducats), InVenice: true,
	}); err != nil {
		t.Fatalf("seed citizen %s: %v", name, err)
	}
}

func seedActivity(t *testing.T, st *store.Store, a *model.Activity) {
	t.Helper()
	if a.StartAt.IsZero() {
		a.StartAt = testNow.Add(-time.Hour)
	}
	if a.EndAt.IsZero() {
		a.EndAt = testNow.Add(-time.Minute)
	}
	if err := store.CreateActivity(st.DB(), a); err != nil {
		t.Fatalf("seed activity %s: %v", a.ID, err)
	}
}

func activityStatus(t *testing.T, st *store.Store, id string) model.ActivityStatus {
	t.Helper()
	a, err := store.GetActivity(st.DB(), id)
	if err != nil {
		t.Fatal(err)
	}
	return a.Status
}

func strptr(s string) *string { return &s }

func TestRunResolvesDueActivities(t *testing.T) {
	st, r := newRunner(t)
	seedCitizen(t, st, "Paolo", 0)
	seedActivity(t, st, &model.Activity{ID: "act_1", Type: "idle", Citizen: "Paolo"})
	// Not yet due.
	seedActivity(t, st, &model.Activity{
		ID: "act_2", Type: "idle", Citizen: "Paolo",
		StartAt: testNow, EndAt: testNow.Add(time.Hour),
	})

	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Processed != 1 || sum.Failed != 0 {
		t.Fatalf("summary = %+v, want 1 processed", sum)
	}
	if got := activityStatus(t, st, "act_1"); got != model.StatusProcessed {
		t.Fatalf("act_1 status = %q", got)
	}
	if got := activityStatus(t, st, "act_2"); got != model.StatusCreated {
		t.Fatalf("act_2 status = %q, should not have been touched", got)
	}
}

// A second run over the same store finds nothing: terminal activities never
// re-enter the batch.
func TestRunIsIdempotent(t *testing.T) {
	st, r := newRunner(t)
	seedCitizen(t, st, "Paolo", 0)
	seedActivity(t, st, &model.Activity{ID: "act_1", Type: "idle", Citizen: "Paolo"})

	if sum, err := r.Run(context.Background()); err != nil || sum.Processed != 1 {
		t.Fatalf("first run: sum=%+v err=%v", sum, err)
	}
	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sum.Processed != 0 || sum.Failed != 0 {
		t.Fatalf("second run summary = %+v, want all zeros", sum)
	}
}

// A processor failure marks the activity failed with the reason recorded,
// and leaves the ledger untouched.
func TestRunFailureRollsBackAndRecords(t *testing.T) {
	st, r := newRunner(t)
	seedCitizen(t, st, "Paolo", 0)
	if err := store.CreateBuilding(st.DB(), &model.Building{
		ID: "warehouse_1", Type: "warehouse", Owner: "Marco",
		StorageCapacity: 100, IsConstructed: true,
	}); err != nil {
		t.Fatal(err)
	}
	wh := ledger.BuildingHolder("warehouse_1")
	if err := ledger.Deposit(st.DB(), "wheat", 2, wh, "Marco"); err != nil {
		t.Fatal(err)
	}

	seedActivity(t, st, &model.Activity{
		ID: "act_1", Type: process.TypeFetchResource, Citizen: "Paolo",
		FromBuilding:  strptr("warehouse_1"),
		ResourcesJSON: model.EncodeResources([]model.ResourceAmount{{Type: "wheat", Amount: 5}}),
	})

	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Failed != 1 {
		t.Fatalf("summary = %+v, want 1 failed", sum)
	}
	a, _ := store.GetActivity(st.DB(), "act_1")
	if a.Status != model.StatusFailed {
		t.Fatalf("status = %q, want failed", a.Status)
	}
	if a.Notes == "" {
		t.Fatal("failure reason not recorded in notes")
	}
	if n, _ := ledger.Stock(st.DB(), "wheat", wh, ""); n != 2 {
		t.Fatalf("warehouse wheat = %d, want 2 (rolled back)", n)
	}
}

func TestRunUnknownTypeFailsActivity(t *testing.T) {
	st, r := newRunner(t)
	seedCitizen(t, st, "Paolo", 0)
	seedActivity(t, st, &model.Activity{ID: "act_1", Type: "dance_the_furlana", Citizen: "Paolo"})

	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Failed != 1 {
		t.Fatalf("summary = %+v, want 1 failed", sum)
	}
	if got := activityStatus(t, st, "act_1"); got != model.StatusFailed {
		t.Fatalf("status = %q, want failed", got)
	}
}

// The gondola toll is charged for the journey even when the activity itself
// fails.
func TestRunFeeChargedDespiteFailure(t *testing.T) {
	st, r := newRunner(t)
	seedCitizen(t, st, "Paolo", 100)
	seedCitizen(t, st, "Gondolier", 0)

	// Roughly 1.2 km of gondola travel.
	path := []model.Waypoint{
		{Lat: 45.43, Lng: 12.33, TransportMode: fees.ModeGondola},
		{Lat: 45.43 + 1.2/111.19, Lng: 12.33, TransportMode: fees.ModeGondola},
	}
	seedActivity(t, st, &model.Activity{
		ID: "act_1", Type: "dance_the_furlana", Citizen: "Paolo",
		Transporter: strptr("Gondolier"),
		PathJSON:    model.EncodeWaypoints(path),
	})

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	paolo, _ := store.GetCitizen(st.DB(), "Paolo")
	gondolier, _ := store.GetCitizen(st.DB(), "Gondolier")
	if paolo.Ducats.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		t.Fatalf("traveler balance = %s, toll not charged", paolo.Ducats)
	}
	if !gondolier.Ducats.IsPositive() {
		t.Fatalf("gondolier balance = %s, toll not received", gondolier.Ducats)
	}
	if !paolo.Ducats.Add(gondolier.Ducats).Equal(decimal.NewFromInt(100)) {
		t.Fatalf("toll did not conserve money: %s + %s", paolo.Ducats, gondolier.Ducats)
	}
}

// Dry run evaluates everything but writes nothing: no status changes, no
// ledger movement, no toll.
func TestRunDryRun(t *testing.T) {
	st, r := newRunner(t)
	r.DryRun = true
	seedCitizen(t, st, "Paolo", 100)
	seedCitizen(t, st, "Gondolier", 0)
	if err := store.CreateBuilding(st.DB(), &model.Building{
		ID: "warehouse_1", Type: "warehouse", Owner: "Marco",
		StorageCapacity: 100, IsConstructed: true,
	}); err != nil {
		t.Fatal(err)
	}
	wh := ledger.BuildingHolder("warehouse_1")
	if err := ledger.Deposit(st.DB(), "wheat", 5, wh, "Marco"); err != nil {
		t.Fatal(err)
	}
	path := []model.Waypoint{
		{Lat: 45.43, Lng: 12.33, TransportMode: fees.ModeGondola},
		{Lat: 45.44, Lng: 12.33, TransportMode: fees.ModeGondola},
	}
	seedActivity(t, st, &model.Activity{
		ID: "act_1", Type: process.TypeFetchResource, Citizen: "Paolo",
		FromBuilding:  strptr("warehouse_1"),
		Transporter:   strptr("Gondolier"),
		PathJSON:      model.EncodeWaypoints(path),
		ResourcesJSON: model.EncodeResources([]model.ResourceAmount{{Type: "wheat", Amount: 5}}),
	})

	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Processed != 1 {
		t.Fatalf("summary = %+v, want 1 processed (evaluated)", sum)
	}
	if got := activityStatus(t, st, "act_1"); got != model.StatusCreated {
		t.Fatalf("status = %q, want created after dry run", got)
	}
	if n, _ := ledger.Stock(st.DB(), "wheat", wh, ""); n != 5 {
		t.Fatalf("warehouse wheat = %d, dry run mutated the ledger", n)
	}
	paolo, _ := store.GetCitizen(st.DB(), "Paolo")
	if !paolo.Ducats.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("traveler balance = %s, dry run charged a toll", paolo.Ducats)
	}
}

func TestRunCitizenScope(t *testing.T) {
	st, r := newRunner(t)
	r.Citizen = "Paolo"
	seedCitizen(t, st, "Paolo", 0)
	seedCitizen(t, st, "Elena", 0)
	seedActivity(t, st, &model.Activity{ID: "act_p", Type: "idle", Citizen: "Paolo"})
	seedActivity(t, st, &model.Activity{ID: "act_e", Type: "idle", Citizen: "Elena"})

	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Processed != 1 {
		t.Fatalf("summary = %+v, want only the scoped citizen's activity", sum)
	}
	if got := activityStatus(t, st, "act_e"); got != model.StatusCreated {
		t.Fatalf("out-of-scope activity status = %q", got)
	}
}

func TestRunPromotesDueVessels(t *testing.T) {
	st, r := newRunner(t)
	arrived := testNow.Add(-time.Hour)
	pending := testNow.Add(time.Hour)
	for _, b := range []*model.Building{
		{ID: "galley_due", Type: "merchant_galley", Operator: "SeaMerchant", ArrivesAt: &arrived},
		{ID: "galley_later", Type: "merchant_galley", Operator: "SeaMerchant", ArrivesAt: &pending},
	} {
		if err := store.CreateBuilding(st.DB(), b); err != nil {
			t.Fatal(err)
		}
	}

	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Arrivals != 1 {
		t.Fatalf("arrivals = %d, want 1", sum.Arrivals)
	}
	due, _ := store.GetBuilding(st.DB(), "galley_due")
	if !due.IsConstructed {
		t.Fatal("due vessel not promoted")
	}
	later, _ := store.GetBuilding(st.DB(), "galley_later")
	if later.IsConstructed {
		t.Fatal("future vessel promoted early")
	}
}

func TestRunDryRunSkipsVesselPromotion(t *testing.T) {
	st, r := newRunner(t)
	r.DryRun = true
	arrived := testNow.Add(-time.Hour)
	if err := store.CreateBuilding(st.DB(), &model.Building{
		ID: "galley_due", Type: "merchant_galley", Operator: "SeaMerchant", ArrivesAt: &arrived,
	}); err != nil {
		t.Fatal(err)
	}

	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Arrivals != 1 {
		t.Fatalf("arrivals = %d, want 1 (reported even in dry run)", sum.Arrivals)
	}
	b, _ := store.GetBuilding(st.DB(), "galley_due")
	if b.IsConstructed {
		t.Fatal("dry run promoted the vessel")
	}
}

func TestUpdatePositionMovesToDestination(t *testing.T) {
	st, _ := newRunner(t)
	seedCitizen(t, st, "Paolo", 0)
	if err := store.CreateBuilding(st.DB(), &model.Building{
		ID: "facility_1", Type: "warehouse", Owner: "Marco", IsConstructed: true,
		PositionJSON: geo.EncodePosition(model.Position{Lat: 45.43, Lng: 12.33}),
	}); err != nil {
		t.Fatal(err)
	}

	act := &model.Activity{
		ID: "act_1", Type: process.TypeDeliverToStorage, Citizen: "Paolo",
		ToBuilding: strptr("facility_1"),
	}
	if err := UpdatePosition(st.DB(), act); err != nil {
		t.Fatalf("update position: %v", err)
	}
	c, _ := store.GetCitizen(st.DB(), "Paolo")
	pos, ok := geo.ParsePositionJSON(c.PositionJSON)
	if !ok || pos.Lat != 45.43 || pos.Lng != 12.33 {
		t.Fatalf("position = %q", c.PositionJSON)
	}
}

func TestUpdatePositionFallsBackToIdentifier(t *testing.T) {
	st, _ := newRunner(t)
	seedCitizen(t, st, "Paolo", 0)
	if err := store.CreateBuilding(st.DB(), &model.Building{
		ID: "canal_house_45.44053_12.32924", Type: "home", Owner: "Paolo", IsConstructed: true,
	}); err != nil {
		t.Fatal(err)
	}

	act := &model.Activity{
		ID: "act_1", Type: "goto_home", Citizen: "Paolo",
		ToBuilding: strptr("canal_house_45.44053_12.32924"),
	}
	if err := UpdatePosition(st.DB(), act); err != nil {
		t.Fatalf("update position: %v", err)
	}
	c, _ := store.GetCitizen(st.DB(), "Paolo")
	pos, ok := geo.ParsePositionJSON(c.PositionJSON)
	if !ok || pos.Lat != 45.44053 {
		t.Fatalf("position = %q", c.PositionJSON)
	}
}

func TestUpdatePositionSkips(t *testing.T) {
	st, _ := newRunner(t)
	seedCitizen(t, st, "Paolo", 0)

	tests := []struct {
		name string
		act  *model.Activity
	}{
		{"self locating type", &model.Activity{
			ID: "a1", Type: process.TypeFishing, Citizen: "Paolo",
			ToBuilding: strptr("anywhere"),
		}},
		{"no destination", &model.Activity{
			ID: "a2", Type: "goto_location", Citizen: "Paolo",
		}},
		{"destination missing", &model.Activity{
			ID: "a3", Type: "goto_location", Citizen: "Paolo",
			ToBuilding: strptr("demolished_palazzo"),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := UpdatePosition(st.DB(), tt.act); err != nil {
				t.Fatalf("UpdatePosition: %v", err)
			}
			c, _ := store.GetCitizen(st.DB(), "Paolo")
			if c.PositionJSON != "" {
				t.Fatalf("citizen moved: %q", c.PositionJSON)
			}
		})
	}
}
