package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/risk-engine/internal/kelly"
	"github.com/quantforge/risk-engine/internal/volatility"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	kc := kelly.NewCalculator(kelly.Config{
		MaxFraction:      0.25,
		MinFraction:      0.01,
		ConfidenceFactor: 0.5,
		RiskFreeRate:     0.02,
	}, nil)

	gate := volatility.NewGate(volatility.Config{
		Window:          20,
		HighThreshold:   2.0,
		LowThreshold:    0.5,
		ReductionFactor: 0.5,
		MinPositionSize: 0.01,
		MinConfidence:   0.6,
	})

	m, err := NewManager(Config{
		InitialCapital:   100000.0,
		MinPositionSize:  0.01,
		MaxPositionSize:  0.25,
		MaxDrawdownLimit: 0.20,
		RiskFreeRate:     0.02,
		RiskAversion:     kelly.DefaultRiskAversion,
	}, kc, gate, nil)
	require.NoError(t, err)

	return m
}

// TestNewManager_Validation tests the construction-time domain checks
func TestNewManager_Validation(t *testing.T) {
	kc := kelly.NewCalculator(kelly.DefaultConfig(), nil)
	gate := volatility.NewGate(volatility.DefaultConfig())

	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero capital", Config{InitialCapital: 0, MinPositionSize: 0.01, MaxPositionSize: 0.25, MaxDrawdownLimit: 0.2}},
		{"negative capital", Config{InitialCapital: -100, MinPositionSize: 0.01, MaxPositionSize: 0.25, MaxDrawdownLimit: 0.2}},
		{"min above max", Config{InitialCapital: 1000, MinPositionSize: 0.5, MaxPositionSize: 0.25, MaxDrawdownLimit: 0.2}},
		{"max above one", Config{InitialCapital: 1000, MinPositionSize: 0.01, MaxPositionSize: 1.5, MaxDrawdownLimit: 0.2}},
		{"drawdown limit zero", Config{InitialCapital: 1000, MinPositionSize: 0.01, MaxPositionSize: 0.25, MaxDrawdownLimit: 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewManager(tc.cfg, kc, gate, nil)
			assert.Error(t, err)
		})
	}

	_, err := NewManager(DefaultConfig(), nil, gate, nil)
	assert.Error(t, err)
}

// TestCalculatePositionSize_GatedOnVolatility tests gating when volatility
// exceeds twice the high threshold
func TestCalculatePositionSize_GatedOnVolatility(t *testing.T) {
	m := newTestManager(t)

	result := m.CalculatePositionSize(SizingRequest{
		Symbol:         "BTCUSDT",
		ExpectedReturn: 0.05,
		Volatility:     5.0,
		Confidence:     0.9,
		Method:         MethodKelly,
	})

	assert.Equal(t, 0.0, result.PositionSize)
	assert.True(t, result.Gated())
	assert.Equal(t, "volatility_or_confidence", result.Metadata["reason"])
	assert.Equal(t, "high", result.Metadata["regime"])
}

// TestCalculatePositionSize_GatedOnConfidence tests gating below the
// confidence floor
func TestCalculatePositionSize_GatedOnConfidence(t *testing.T) {
	m := newTestManager(t)

	result := m.CalculatePositionSize(SizingRequest{
		Symbol:         "BTCUSDT",
		ExpectedReturn: 0.05,
		Volatility:     1.0,
		Confidence:     0.5,
		Method:         MethodKelly,
	})

	assert.Equal(t, 0.0, result.PositionSize)
	assert.True(t, result.Gated())
}

// TestCalculatePositionSize_KellyWithTradeStats tests the win/loss Kelly path
func TestCalculatePositionSize_KellyWithTradeStats(t *testing.T) {
	m := newTestManager(t)

	result := m.CalculatePositionSize(SizingRequest{
		Symbol:         "BTCUSDT",
		ExpectedReturn: 0.05,
		Volatility:     1.0,
		Confidence:     1.0,
		Method:         MethodKelly,
		WinRate:        0.6,
		AvgWin:         150.0,
		AvgLoss:        100.0,
		HasTradeStats:  true,
	})

	assert.False(t, result.Gated())
	// Base Kelly fraction 0.1667, normal regime and full confidence leave it unchanged
	assert.InDelta(t, 0.16667, result.Metadata["base_size"].(float64), 0.0001)
	assert.InDelta(t, 0.16667, result.PositionSize, 0.0001)
	assert.Equal(t, "normal", result.Metadata["regime"])

	// Kelly base size is always inside the configured fraction bounds
	base := result.Metadata["base_size"].(float64)
	assert.GreaterOrEqual(t, base, 0.01)
	assert.LessOrEqual(t, base, 0.25)
}

// TestCalculatePositionSize_KellyWithoutTradeStats tests the risk-adjusted
// Kelly fallback
func TestCalculatePositionSize_KellyWithoutTradeStats(t *testing.T) {
	m := newTestManager(t)

	result := m.CalculatePositionSize(SizingRequest{
		Symbol:         "BTCUSDT",
		ExpectedReturn: 0.10,
		Volatility:     0.6,
		Confidence:     1.0,
		Method:         MethodKelly,
	})

	assert.False(t, result.Gated())
	// f = (0.10 - 0.02) / (3 * 0.36) * 0.5 = 0.03704
	assert.InDelta(t, 0.03704, result.Metadata["base_size"].(float64), 0.0001)
}

// TestCalculatePositionSize_FixedFraction tests the fixed-fraction method
func TestCalculatePositionSize_FixedFraction(t *testing.T) {
	m := newTestManager(t)

	result := m.CalculatePositionSize(SizingRequest{
		Symbol:     "BTCUSDT",
		Volatility: 1.0,
		Confidence: 0.8,
		Method:     MethodFixedFraction,
	})

	// base = 0.25 * 0.8 = 0.2, then *0.8 confidence in the adjustment stage
	assert.InDelta(t, 0.2, result.Metadata["base_size"].(float64), 1e-9)
	assert.InDelta(t, 0.16, result.PositionSize, 1e-9)
}

// TestCalculatePositionSize_VolatilityBased tests the inverse-volatility method
func TestCalculatePositionSize_VolatilityBased(t *testing.T) {
	m := newTestManager(t)

	result := m.CalculatePositionSize(SizingRequest{
		Symbol:     "BTCUSDT",
		Volatility: 1.0,
		Confidence: 1.0,
		Method:     MethodVolatilityBased,
	})

	// base = min(0.25, 0.1/1.0) * 1.0 = 0.1
	assert.InDelta(t, 0.1, result.Metadata["base_size"].(float64), 1e-9)
}

// TestCalculatePositionSize_RiskParity tests the risk-parity method
func TestCalculatePositionSize_RiskParity(t *testing.T) {
	m := newTestManager(t)

	result := m.CalculatePositionSize(SizingRequest{
		Symbol:     "BTCUSDT",
		Volatility: 1.0,
		Confidence: 1.0,
		Method:     MethodRiskParity,
	})

	// base = (0.25 / 1.0) * 1.0 = 0.25
	assert.InDelta(t, 0.25, result.Metadata["base_size"].(float64), 1e-9)
}

// TestCalculatePositionSize_AdaptiveFallsBackToMinimum tests the default
// dispatch branch
func TestCalculatePositionSize_AdaptiveFallsBackToMinimum(t *testing.T) {
	m := newTestManager(t)

	result := m.CalculatePositionSize(SizingRequest{
		Symbol:     "BTCUSDT",
		Volatility: 1.0,
		Confidence: 1.0,
		Method:     MethodAdaptive,
	})

	assert.InDelta(t, 0.01, result.Metadata["base_size"].(float64), 1e-9)
	assert.InDelta(t, 0.01, result.PositionSize, 1e-9)
}

// TestCalculatePositionSize_RiskScore tests the risk score composition
func TestCalculatePositionSize_RiskScore(t *testing.T) {
	m := newTestManager(t)

	result := m.CalculatePositionSize(SizingRequest{
		Symbol:     "BTCUSDT",
		Volatility: 1.0,
		Confidence: 0.8,
		Method:     MethodFixedFraction,
	})

	// (min(1.0/2, 1.0) + (1 - 0.8)) / 2 = 0.35
	assert.InDelta(t, 0.35, result.RiskScore, 1e-9)
	assert.GreaterOrEqual(t, result.RiskScore, 0.0)
	assert.LessOrEqual(t, result.RiskScore, 1.0)
}

// TestUpdatePosition_Profit tests the documented bookkeeping for a winning fill
func TestUpdatePosition_Profit(t *testing.T) {
	m := newTestManager(t)

	m.UpdatePosition("BTCUSDT", 0.1, 100.0, 110.0)

	stats := m.Stats()
	assert.InDelta(t, 100001.0, stats.CurrentCapital, 1e-9)
	assert.InDelta(t, 100001.0, stats.PeakCapital, 1e-9)
	assert.InDelta(t, 1.0, stats.TotalPnL, 1e-9)
	assert.Equal(t, 1, stats.TotalTrades)
	assert.Equal(t, 1, stats.WinningTrades)
	assert.Equal(t, 0, stats.LosingTrades)

	drawdowns := m.DrawdownHistory()
	assert.Len(t, drawdowns, 1)
	assert.Equal(t, 0.0, drawdowns[0])

	pos, ok := m.Position("BTCUSDT")
	assert.True(t, ok)
	assert.InDelta(t, 1.0, pos.PnL, 1e-9)
	assert.Equal(t, 110.0, pos.CurrentPrice)
}

// TestUpdatePosition_ZeroPnLCountsAsLoss tests the losing-trade convention
func TestUpdatePosition_ZeroPnLCountsAsLoss(t *testing.T) {
	m := newTestManager(t)

	m.UpdatePosition("BTCUSDT", 0.1, 100.0, 100.0)

	stats := m.Stats()
	assert.Equal(t, 1, stats.TotalTrades)
	assert.Equal(t, 0, stats.WinningTrades)
	assert.Equal(t, 1, stats.LosingTrades)
}

// TestUpdatePosition_Invariants tests monotonic peak and bounded drawdowns
// over a mixed sequence of fills
func TestUpdatePosition_Invariants(t *testing.T) {
	m := newTestManager(t)

	fills := []struct {
		size, entry, current float64
	}{
		{100.0, 100.0, 110.0},
		{200.0, 110.0, 90.0},
		{150.0, 90.0, 95.0},
		{50.0, 95.0, 80.0},
		{300.0, 80.0, 120.0},
	}

	prevPeak := 0.0
	for _, f := range fills {
		m.UpdatePosition("BTCUSDT", f.size, f.entry, f.current)

		stats := m.Stats()
		assert.GreaterOrEqual(t, stats.PeakCapital, prevPeak)
		assert.GreaterOrEqual(t, stats.PeakCapital, stats.CurrentCapital)
		prevPeak = stats.PeakCapital
	}

	for _, dd := range m.DrawdownHistory() {
		assert.GreaterOrEqual(t, dd, 0.0)
		assert.LessOrEqual(t, dd, 1.0)
	}
	assert.Len(t, m.DrawdownHistory(), len(fills))
	assert.Len(t, m.CapitalHistory(), len(fills))
}

// TestUpdatePosition_Upsert tests that a symbol's record is overwritten
func TestUpdatePosition_Upsert(t *testing.T) {
	m := newTestManager(t)

	m.UpdatePosition("BTCUSDT", 0.1, 100.0, 110.0)
	m.UpdatePosition("BTCUSDT", 0.2, 110.0, 105.0)

	positions := m.Positions()
	assert.Len(t, positions, 1)
	assert.Equal(t, 0.2, positions["BTCUSDT"].Size)
	assert.InDelta(t, -1.0, positions["BTCUSDT"].PnL, 1e-9)

	stats := m.Stats()
	assert.Equal(t, 2, stats.TotalTrades)
	assert.Equal(t, 1, stats.OpenPositions)
}

// TestSizingResult_MaxDrawdownAtCallTime tests that sizing results carry the
// portfolio max drawdown observed so far
func TestSizingResult_MaxDrawdownAtCallTime(t *testing.T) {
	m := newTestManager(t)

	result := m.CalculatePositionSize(SizingRequest{
		Symbol: "BTCUSDT", Volatility: 1.0, Confidence: 1.0, Method: MethodFixedFraction,
	})
	assert.Equal(t, 0.0, result.MaxDrawdown)

	m.UpdatePosition("BTCUSDT", 100.0, 100.0, 110.0) // capital 101000, peak 101000
	m.UpdatePosition("BTCUSDT", 100.0, 110.0, 100.0) // capital 100000, drawdown > 0

	result = m.CalculatePositionSize(SizingRequest{
		Symbol: "BTCUSDT", Volatility: 1.0, Confidence: 1.0, Method: MethodFixedFraction,
	})
	assert.Greater(t, result.MaxDrawdown, 0.0)
}
