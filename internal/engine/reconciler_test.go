package engine

import (
	"math/rand"
	"testing"
	"time"

	"stockdeck/internal/models"
)

func inst(symbol string, price float64, ts time.Time) models.Instrument {
	return models.Instrument{
		Symbol:      symbol,
		CompanyName: symbol + " Inc",
		Sector:      "Technology",
		Price:       price,
		Volume:      1000,
		LastUpdated: ts,
	}
}

func TestReconciler_SnapshotSetsDirectionFromPreviousPrice(t *testing.T) {
	r := NewReconciler()
	now := time.Now()

	r.ApplySnapshot([]models.Instrument{inst("AAPL", 150.00, now)}, true, now)

	rows := r.Snapshot()
	if rows[0].Direction != models.DirectionNone {
		t.Errorf("first sighting direction = %s, want none", rows[0].Direction)
	}

	r.ApplySnapshot([]models.Instrument{inst("AAPL", 152.00, now.Add(time.Second))}, true, now.Add(time.Second))
	rows = r.Snapshot()
	if rows[0].Direction != models.DirectionUp {
		t.Errorf("direction after rise = %s, want up", rows[0].Direction)
	}
	if rows[0].DisplayPrice != 152.00 {
		t.Errorf("display price = %f, want snap to 152.00", rows[0].DisplayPrice)
	}

	r.ApplySnapshot([]models.Instrument{inst("AAPL", 149.00, now.Add(2*time.Second))}, true, now.Add(2*time.Second))
	if rows = r.Snapshot(); rows[0].Direction != models.DirectionDown {
		t.Errorf("direction after fall = %s, want down", rows[0].Direction)
	}
}

func TestReconciler_RepeatedFetchSamePriceIsIdempotent(t *testing.T) {
	r := NewReconciler()
	now := time.Now()

	r.ApplySnapshot([]models.Instrument{inst("TSLA", 250.00, now)}, true, now)
	r.ApplySnapshot([]models.Instrument{inst("TSLA", 250.00, now.Add(time.Second))}, true, now.Add(time.Second))

	rows := r.Snapshot()
	if rows[0].Direction != models.DirectionNone {
		t.Errorf("direction for unchanged price = %s, want none", rows[0].Direction)
	}
	if rows[0].Price != 250.00 || rows[0].DisplayPrice != 250.00 {
		t.Errorf("prices changed on identical snapshot: %+v", rows[0])
	}
}

func TestReconciler_DirectionComputedFromRealNotDisplayed(t *testing.T) {
	r := NewReconciler()
	now := time.Now()

	r.ApplySnapshot([]models.Instrument{inst("MSFT", 300.00, now)}, true, now)

	// Let the simulation drag the displayed price above the real one.
	r.SimulateTick(func(real, shown float64) float64 { return 305.00 })

	// A new authoritative price between display and real must read as a
	// rise, judged against the previous real price.
	r.ApplySnapshot([]models.Instrument{inst("MSFT", 302.00, now.Add(time.Second))}, true, now.Add(time.Second))

	rows := r.Snapshot()
	if rows[0].Direction != models.DirectionUp {
		t.Errorf("direction = %s, want up (302 > 300 regardless of displayed 305)", rows[0].Direction)
	}
	if rows[0].DisplayPrice != 302.00 {
		t.Errorf("display price = %f, want authoritative 302.00", rows[0].DisplayPrice)
	}
}

func TestReconciler_PartialUpdateKeepsOmittedFields(t *testing.T) {
	r := NewReconciler()
	now := time.Now()

	base := inst("NVDA", 800.00, now)
	base.ChangePercent = 1.5
	r.ApplySnapshot([]models.Instrument{base}, true, now)

	r.ApplyUpdates([]models.Update{{
		Symbol:    "NVDA",
		Price:     805.00,
		HasPrice:  true,
		Timestamp: now.Add(time.Second),
	}})

	rows := r.Snapshot()
	if rows[0].Price != 805.00 {
		t.Errorf("price = %f, want 805.00", rows[0].Price)
	}
	if rows[0].Volume != 1000 {
		t.Errorf("omitted volume overwritten: %d", rows[0].Volume)
	}
	if rows[0].ChangePercent != 1.5 {
		t.Errorf("omitted change overwritten: %f", rows[0].ChangePercent)
	}
	if rows[0].Direction != models.DirectionUp {
		t.Errorf("direction = %s, want up", rows[0].Direction)
	}
}

func TestReconciler_OutOfOrderUpdateDropped(t *testing.T) {
	r := NewReconciler()
	now := time.Now()

	r.ApplySnapshot([]models.Instrument{inst("AMD", 120.00, now)}, true, now)

	r.ApplyUpdates([]models.Update{{
		Symbol:    "AMD",
		Price:     110.00,
		HasPrice:  true,
		Timestamp: now.Add(-time.Minute),
	}})

	if rows := r.Snapshot(); rows[0].Price != 120.00 {
		t.Errorf("stale update applied: price = %f, want 120.00", rows[0].Price)
	}
}

func TestReconciler_UpdateForUnknownSymbolIgnored(t *testing.T) {
	r := NewReconciler()
	now := time.Now()

	r.ApplySnapshot([]models.Instrument{inst("AAPL", 150.00, now)}, true, now)
	r.ApplyUpdates([]models.Update{{Symbol: "GOOG", Price: 140.00, HasPrice: true, Timestamp: now}})

	if r.Len() != 1 {
		t.Errorf("membership grew from a push update: len = %d", r.Len())
	}
}

func TestReconciler_MergeModeKeepsMembership(t *testing.T) {
	r := NewReconciler()
	now := time.Now()

	r.ApplySnapshot([]models.Instrument{inst("AAPL", 150.00, now), inst("TSLA", 250.00, now)}, true, now)

	// A merge refresh carrying extra symbols must not change what is shown.
	r.ApplySnapshot([]models.Instrument{
		inst("AAPL", 151.00, now.Add(time.Second)),
		inst("GOOG", 140.00, now.Add(time.Second)),
	}, false, now.Add(time.Second))

	syms := r.Symbols()
	if len(syms) != 2 || syms[0] != "AAPL" || syms[1] != "TSLA" {
		t.Fatalf("membership changed: %v", syms)
	}
	if rows := r.Snapshot(); rows[0].Price != 151.00 {
		t.Errorf("existing symbol not refreshed: price = %f", rows[0].Price)
	}
}

func TestReconciler_SimulateTickOnlyTouchesDisplayPrice(t *testing.T) {
	r := NewReconciler()
	now := time.Now()

	r.ApplySnapshot([]models.Instrument{inst("AAPL", 150.00, now)}, true, now)
	r.SimulateTick(func(real, shown float64) float64 { return shown + 0.50 })

	rows := r.Snapshot()
	if rows[0].Price != 150.00 {
		t.Errorf("simulation touched the real price: %f", rows[0].Price)
	}
	if rows[0].DisplayPrice != 150.50 {
		t.Errorf("display price = %f, want 150.50", rows[0].DisplayPrice)
	}
	if rows[0].Direction != models.DirectionNone {
		t.Errorf("simulation changed direction: %s", rows[0].Direction)
	}
}

// The full tick loop in miniature: a price change arrives, the display
// converges over a handful of simulation ticks, then the next real update
// lands exactly and recolors the row.
func TestReconciler_ConvergenceScenario(t *testing.T) {
	r := NewReconciler()
	sim := NewSimulatorWithSource(DefaultSimulatorConfig(), rand.New(rand.NewSource(3)))
	now := time.Now()

	r.ApplySnapshot([]models.Instrument{inst("AAPL", 150.00, now)}, true, now)

	r.ApplyUpdates([]models.Update{{
		Symbol: "AAPL", Price: 152.00, HasPrice: true, Timestamp: now.Add(time.Second),
	}})
	if rows := r.Snapshot(); rows[0].Direction != models.DirectionUp {
		t.Fatalf("direction = %s, want up", rows[0].Direction)
	}

	// Drag the display away, then let it converge back.
	r.SimulateTick(func(real, shown float64) float64 { return 150.00 })
	for i := 0; i < 50; i++ {
		r.SimulateTick(sim.Step)
	}

	rows := r.Snapshot()
	if rows[0].DisplayPrice != 152.00 {
		t.Errorf("display did not converge exactly: %f", rows[0].DisplayPrice)
	}
}

func TestSameSymbols(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want bool
	}{
		{"identical", []string{"A", "B"}, []string{"A", "B"}, true},
		{"reordered", []string{"A", "B"}, []string{"B", "A"}, true},
		{"different member", []string{"A", "B"}, []string{"A", "C"}, false},
		{"different length", []string{"A"}, []string{"A", "B"}, false},
		{"both empty", nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SameSymbols(tt.a, tt.b); got != tt.want {
				t.Errorf("SameSymbols(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestTopMovers(t *testing.T) {
	records := []models.Instrument{
		{Symbol: "A", ChangePercent: 1.0},
		{Symbol: "B", ChangePercent: -5.0},
		{Symbol: "C", ChangePercent: 3.0},
	}

	movers := TopMovers(records, 2)
	if len(movers) != 2 || movers[0].Symbol != "B" || movers[1].Symbol != "C" {
		t.Errorf("TopMovers = %v, want [B C]", movers)
	}
}
