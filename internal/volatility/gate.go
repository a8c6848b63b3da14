package volatility

import (
	"sync"
)

// Regime represents a coarse volatility regime classification
type Regime int

const (
	RegimeLow Regime = iota
	RegimeNormal
	RegimeHigh
)

func (r Regime) String() string {
	switch r {
	case RegimeLow:
		return "low"
	case RegimeNormal:
		return "normal"
	case RegimeHigh:
		return "high"
	default:
		return "unknown"
	}
}

// regimeHistoryCapacity bounds the per-symbol regime log; oldest entries are
// evicted first
const regimeHistoryCapacity = 100

// Config holds the volatility gate parameters.
// Expected domains: HighThreshold > LowThreshold > 0, 0 < ReductionFactor < 1,
// MinConfidence in [0,1].
type Config struct {
	Window          int     `json:"volatility_window"`
	HighThreshold   float64 `json:"high_volatility_threshold"`
	LowThreshold    float64 `json:"low_volatility_threshold"`
	ReductionFactor float64 `json:"position_reduction_factor"`
	MinPositionSize float64 `json:"min_position_size"`
	MinConfidence   float64 `json:"min_confidence_threshold"`
}

// DefaultConfig returns the default gate parameters
func DefaultConfig() Config {
	return Config{
		Window:          20,
		HighThreshold:   2.0,
		LowThreshold:    0.5,
		ReductionFactor: 0.5,
		MinPositionSize: 0.01,
		MinConfidence:   0.6,
	}
}

// Gate performs volatility estimation, regime classification, position-size
// adjustment and trade gating, keyed per instrument symbol. Classification is
// memoryless: identical volatility always yields the identical regime. The
// per-symbol regime history is an append-only observability log and is never
// read back into sizing decisions.
type Gate struct {
	cfg Config

	mu      sync.Mutex
	history map[string][]Regime
}

// NewGate creates a new volatility gate
func NewGate(cfg Config) *Gate {
	return &Gate{
		cfg:     cfg,
		history: make(map[string][]Regime),
	}
}

// Config returns the gate configuration
func (g *Gate) Config() Config {
	return g.cfg
}

// Classify returns the volatility regime for the given observation and
// appends it to the symbol's bounded regime history as a side effect
func (g *Gate) Classify(symbol string, volatility float64) Regime {
	var regime Regime
	switch {
	case volatility < g.cfg.LowThreshold:
		regime = RegimeLow
	case volatility > g.cfg.HighThreshold:
		regime = RegimeHigh
	default:
		regime = RegimeNormal
	}

	g.mu.Lock()
	entries := append(g.history[symbol], regime)
	if len(entries) > regimeHistoryCapacity {
		entries = entries[len(entries)-regimeHistoryCapacity:]
	}
	g.history[symbol] = entries
	g.mu.Unlock()

	return regime
}

// AdjustSize scales a base position size for the detected regime and signal
// confidence. High-volatility regimes are cut by the reduction factor;
// low-volatility regimes are boosted by up to 1.5x. The result is floored at
// MinPositionSize but never capped.
func (g *Gate) AdjustSize(baseSize, volatility float64, regime Regime, confidence float64) float64 {
	adjusted := baseSize

	switch regime {
	case RegimeHigh:
		adjusted *= g.cfg.ReductionFactor
	case RegimeLow:
		boost := 1 + (g.cfg.LowThreshold - volatility)
		if boost > 1.5 {
			boost = 1.5
		}
		adjusted *= boost
	}

	adjusted *= confidence

	if adjusted < g.cfg.MinPositionSize {
		adjusted = g.cfg.MinPositionSize
	}

	return adjusted
}

// ShouldGate reports whether a trade should be blocked outright: volatility
// above twice the high threshold, or confidence below the configured floor.
// Gating is a decision, not a failure.
func (g *Gate) ShouldGate(volatility, confidence float64) bool {
	return volatility > 2*g.cfg.HighThreshold || confidence < g.cfg.MinConfidence
}

// RegimeHistory returns a copy of the symbol's recorded regime history,
// oldest first
func (g *Gate) RegimeHistory(symbol string) []Regime {
	g.mu.Lock()
	defer g.mu.Unlock()

	entries := g.history[symbol]
	out := make([]Regime, len(entries))
	copy(out, entries)
	return out
}
