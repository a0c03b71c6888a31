package engine

import (
	"math"
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Feature: stockdeck, Property 1: Simulation converges to the real price
//
// Property: For any real price and any starting displayed price, repeatedly
// stepping the simulator reaches the real price exactly within a bounded
// number of ticks and stays there.
func TestProperty_SimulationConverges(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(42)

	properties := gopter.NewProperties(parameters)

	properties.Property("display price converges to the real price exactly", prop.ForAll(
		func(real, shown float64, seed int64) bool {
			sim := NewSimulatorWithSource(DefaultSimulatorConfig(), rand.New(rand.NewSource(seed)))

			price := shown
			for i := 0; i < 200; i++ {
				price = sim.Step(real, price)
				if price == real {
					break
				}
			}
			if price != real {
				t.Logf("no convergence: real=%f final=%f", real, price)
				return false
			}

			// Once converged, the displayed price must not drift again.
			for i := 0; i < 5; i++ {
				if price = sim.Step(real, price); price != real {
					t.Logf("drift after convergence: real=%f price=%f", real, price)
					return false
				}
			}
			return true
		},
		gen.Float64Range(0.5, 10000.0),
		gen.Float64Range(0.5, 10000.0),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

// Feature: stockdeck, Property 2: Every tick moves the display closer
//
// Property: While the displayed price is outside the convergence threshold,
// one simulation step strictly shrinks the distance to the real price.
func TestProperty_SimulationMonotoneApproach(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(42)

	properties := gopter.NewProperties(parameters)

	properties.Property("step shrinks the distance to the real price", prop.ForAll(
		func(real, shown float64, seed int64) bool {
			cfg := DefaultSimulatorConfig()
			if math.Abs(real-shown) < cfg.Epsilon {
				return true
			}

			sim := NewSimulatorWithSource(cfg, rand.New(rand.NewSource(seed)))
			next := sim.Step(real, shown)
			return math.Abs(real-next) < math.Abs(real-shown)
		},
		gen.Float64Range(0.5, 10000.0),
		gen.Float64Range(0.5, 10000.0),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestSimulator_SnapsWithinEpsilon(t *testing.T) {
	sim := NewSimulatorWithSource(DefaultSimulatorConfig(), rand.New(rand.NewSource(1)))

	tests := []struct {
		name  string
		real  float64
		shown float64
	}{
		{"just inside threshold", 150.00, 150.009},
		{"equal already", 99.50, 99.50},
		{"below real", 42.00, 41.995},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sim.Step(tt.real, tt.shown); got != tt.real {
				t.Errorf("Step(%f, %f) = %f, want exact %f", tt.real, tt.shown, got, tt.real)
			}
		})
	}
}

func TestSimulator_JitterBounded(t *testing.T) {
	cfg := DefaultSimulatorConfig()
	sim := NewSimulatorWithSource(cfg, rand.New(rand.NewSource(7)))

	real, shown := 1000.0, 900.0
	for i := 0; i < 100; i++ {
		next := sim.Step(real, shown)
		base := shown + cfg.Approach*(real-shown)
		if math.Abs(next-base) > cfg.JitterFraction*real+1e-9 {
			t.Fatalf("jitter too large: base=%f next=%f", base, next)
		}
		shown = next
	}
}
