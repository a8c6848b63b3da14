package volatility

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testConfig() Config {
	return Config{
		Window:          20,
		HighThreshold:   2.0,
		LowThreshold:    0.5,
		ReductionFactor: 0.5,
		MinPositionSize: 0.01,
		MinConfidence:   0.6,
	}
}

// TestClassify_Thresholds tests the three regime bands
func TestClassify_Thresholds(t *testing.T) {
	gate := NewGate(testConfig())

	assert.Equal(t, RegimeLow, gate.Classify("BTCUSDT", 0.1))
	assert.Equal(t, RegimeNormal, gate.Classify("BTCUSDT", 0.5))
	assert.Equal(t, RegimeNormal, gate.Classify("BTCUSDT", 1.0))
	assert.Equal(t, RegimeNormal, gate.Classify("BTCUSDT", 2.0))
	assert.Equal(t, RegimeHigh, gate.Classify("BTCUSDT", 2.5))
}

// TestClassify_Deterministic tests that identical input always yields the
// identical label, with no hysteresis
func TestClassify_Deterministic(t *testing.T) {
	gate := NewGate(testConfig())

	for i := 0; i < 10; i++ {
		assert.Equal(t, RegimeHigh, gate.Classify("ETHUSDT", 3.0))
		assert.Equal(t, RegimeLow, gate.Classify("ETHUSDT", 0.2))
	}
}

// TestClassify_HistoryBounded tests the capacity-100 regime history eviction
func TestClassify_HistoryBounded(t *testing.T) {
	gate := NewGate(testConfig())

	gate.Classify("SOLUSDT", 3.0) // high, will be evicted
	for i := 0; i < 100; i++ {
		gate.Classify("SOLUSDT", 0.1)
	}

	history := gate.RegimeHistory("SOLUSDT")
	assert.Len(t, history, 100)
	for _, r := range history {
		assert.Equal(t, RegimeLow, r)
	}
}

// TestRegimeHistory_PerSymbol tests that histories are keyed per instrument
func TestRegimeHistory_PerSymbol(t *testing.T) {
	gate := NewGate(testConfig())

	gate.Classify("BTCUSDT", 3.0)
	gate.Classify("ETHUSDT", 0.1)

	assert.Equal(t, []Regime{RegimeHigh}, gate.RegimeHistory("BTCUSDT"))
	assert.Equal(t, []Regime{RegimeLow}, gate.RegimeHistory("ETHUSDT"))
	assert.Empty(t, gate.RegimeHistory("SOLUSDT"))
}

// TestShouldGate_Volatility tests gating on excessive volatility
func TestShouldGate_Volatility(t *testing.T) {
	gate := NewGate(testConfig())

	// 5.0 > 2 * 2.0
	assert.True(t, gate.ShouldGate(5.0, 0.9))
	// 4.0 is not strictly above the doubled threshold
	assert.False(t, gate.ShouldGate(4.0, 0.9))
}

// TestShouldGate_Confidence tests gating on insufficient confidence
func TestShouldGate_Confidence(t *testing.T) {
	gate := NewGate(testConfig())

	assert.True(t, gate.ShouldGate(1.0, 0.5))
	assert.False(t, gate.ShouldGate(1.0, 0.6))
	assert.False(t, gate.ShouldGate(1.0, 0.9))
}

// TestAdjustSize_HighRegime tests the reduction factor path
func TestAdjustSize_HighRegime(t *testing.T) {
	gate := NewGate(testConfig())

	// 0.2 * 0.5 * 1.0 = 0.1
	adjusted := gate.AdjustSize(0.2, 2.5, RegimeHigh, 1.0)
	assert.InDelta(t, 0.1, adjusted, 1e-9)
}

// TestAdjustSize_LowRegime tests the capped low-volatility boost
func TestAdjustSize_LowRegime(t *testing.T) {
	gate := NewGate(testConfig())

	// boost = 1 + (0.5 - 0.3) = 1.2 -> 0.1 * 1.2 = 0.12
	adjusted := gate.AdjustSize(0.1, 0.3, RegimeLow, 1.0)
	assert.InDelta(t, 0.12, adjusted, 1e-9)

	// boost capped at 1.5 for very low volatility
	adjusted = gate.AdjustSize(0.1, -0.8, RegimeLow, 1.0)
	assert.InDelta(t, 0.15, adjusted, 1e-9)
}

// TestAdjustSize_ConfidenceAndFloor tests the confidence multiply and min floor
func TestAdjustSize_ConfidenceAndFloor(t *testing.T) {
	gate := NewGate(testConfig())

	// 0.2 * 0.5 = 0.1
	adjusted := gate.AdjustSize(0.2, 1.0, RegimeNormal, 0.5)
	assert.InDelta(t, 0.1, adjusted, 1e-9)

	// Tiny base floors at MinPositionSize
	adjusted = gate.AdjustSize(0.001, 1.0, RegimeNormal, 0.5)
	assert.Equal(t, 0.01, adjusted)
}

// TestAdjustSize_NoCeiling tests that no upper clamp applies at this stage
func TestAdjustSize_NoCeiling(t *testing.T) {
	gate := NewGate(testConfig())

	adjusted := gate.AdjustSize(10.0, 0.3, RegimeLow, 1.0)
	assert.InDelta(t, 12.0, adjusted, 1e-9)
}

// TestRegime_String tests the regime labels
func TestRegime_String(t *testing.T) {
	assert.Equal(t, "low", RegimeLow.String())
	assert.Equal(t, "normal", RegimeNormal.String())
	assert.Equal(t, "high", RegimeHigh.String())
	assert.Equal(t, "unknown", Regime(42).String())
}

// TestClassify_Concurrent exercises the serialized history append
func TestClassify_Concurrent(t *testing.T) {
	gate := NewGate(testConfig())

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(id int) {
			defer func() { done <- struct{}{} }()
			symbol := fmt.Sprintf("SYM%d", id%2)
			for j := 0; j < 50; j++ {
				gate.Classify(symbol, 1.0)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	assert.Len(t, gate.RegimeHistory("SYM0"), 100)
	assert.Len(t, gate.RegimeHistory("SYM1"), 100)
}
