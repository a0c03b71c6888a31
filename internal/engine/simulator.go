package engine

import (
	"math"
	"math/rand"
	"time"
)

// SimulatorConfig holds the interpolation parameters.
type SimulatorConfig struct {
	// Epsilon is the convergence threshold in currency units; once the
	// displayed price is this close to the real one it snaps exactly.
	Epsilon float64
	// Approach is the fraction of the remaining distance covered per tick.
	Approach float64
	// JitterFraction bounds the cosmetic jitter as a fraction of the real
	// price.
	JitterFraction float64
}

// DefaultSimulatorConfig returns the default interpolation parameters.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		Epsilon:        0.01,
		Approach:       0.3,
		JitterFraction: 0.0015, // 0.15% of the real price
	}
}

// Simulator nudges displayed prices toward the last authoritative price,
// adding bounded cosmetic jitter so the display never looks static between
// real updates. It never produces authoritative state: the step function
// reads the real price and returns only a new displayed price.
type Simulator struct {
	config SimulatorConfig
	rng    *rand.Rand
}

// NewSimulator creates a simulator with the given parameters and a
// time-seeded random source.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	return NewSimulatorWithSource(cfg, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewSimulatorWithSource creates a simulator with an explicit random
// source. Tests inject a fixed seed here.
func NewSimulatorWithSource(cfg SimulatorConfig, rng *rand.Rand) *Simulator {
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = DefaultSimulatorConfig().Epsilon
	}
	if cfg.Approach <= 0 || cfg.Approach >= 1 {
		cfg.Approach = DefaultSimulatorConfig().Approach
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	return &Simulator{config: cfg, rng: rng}
}

// Step computes the next displayed price for one symbol. Within epsilon of
// the real price the displayed value snaps exactly and stays there; no
// jitter is applied once converged, so convergence terminates instead of
// micro-drifting forever.
func (s *Simulator) Step(real, shown float64) float64 {
	if math.Abs(real-shown) < s.config.Epsilon {
		return real
	}

	next := shown + s.config.Approach*(real-shown)

	// Jitter is capped at both the configured fraction of the real price
	// and a quarter of the remaining gap, so every tick still shrinks the
	// distance to the real price.
	limit := s.config.JitterFraction * math.Abs(real)
	if gap := 0.25 * math.Abs(real-next); gap < limit {
		limit = gap
	}
	if limit > 0 && next != 0 {
		frac := (s.rng.Float64()*2 - 1) * limit / math.Abs(next)
		next *= 1 + frac
	}

	return next
}
