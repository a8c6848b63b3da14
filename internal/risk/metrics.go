package risk

import (
	"math"
	"sort"
)

// Metrics computes a risk snapshot from the recorded capital history.
// Returns an all-zero snapshot when fewer than 2 capital observations exist.
// Beta, alpha and information ratio are fixed placeholders in the absence of
// a benchmark series.
func (m *Manager) Metrics() Metrics {
	m.mu.Lock()
	capitals := append([]float64(nil), m.returnsHistory...)
	drawdowns := append([]float64(nil), m.drawdownHistory...)
	capital := m.currentCapital
	m.mu.Unlock()

	if len(capitals) < 2 {
		return Metrics{}
	}

	// Period returns as pairwise relative changes of the capital levels
	returns := make([]float64, 0, len(capitals)-1)
	for i := 1; i < len(capitals); i++ {
		returns = append(returns, (capitals[i]-capitals[i-1])/capitals[i-1])
	}

	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)

	var95 := percentile(sorted, 5)
	var99 := percentile(sorted, 1)

	maxDD := 0.0
	for _, dd := range drawdowns {
		if dd > maxDD {
			maxDD = dd
		}
	}

	mean := meanOf(returns)
	std := sampleStd(returns, mean)

	dailyRiskFree := m.cfg.RiskFreeRate / tradingDaysPerYear
	excess := mean - dailyRiskFree

	sharpe := 0.0
	if std > 0 {
		sharpe = excess / std * math.Sqrt(tradingDaysPerYear)
	}

	sortino := 0.0
	if downside := downsideStd(returns); downside > 0 {
		sortino = excess / downside * math.Sqrt(tradingDaysPerYear)
	}

	calmar := 0.0
	if maxDD > 0 {
		n := float64(len(returns))
		annualized := math.Pow(capital/m.cfg.InitialCapital, tradingDaysPerYear/n) - 1
		calmar = annualized / maxDD
	}

	return Metrics{
		VaR95:            var95,
		VaR99:            var99,
		CVaR95:           tailMean(returns, var95),
		CVaR99:           tailMean(returns, var99),
		MaxDrawdown:      maxDD,
		SharpeRatio:      sharpe,
		SortinoRatio:     sortino,
		CalmarRatio:      calmar,
		Volatility:       std * math.Sqrt(tradingDaysPerYear),
		Beta:             1.0,
		Alpha:            0.0,
		InformationRatio: 0.0,
	}
}

// percentile computes the p-th percentile of a sorted slice with linear
// interpolation between adjacent ranks
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0.0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// tailMean averages the returns at or below the VaR threshold
func tailMean(returns []float64, threshold float64) float64 {
	sum := 0.0
	count := 0
	for _, r := range returns {
		if r <= threshold {
			sum += r
			count++
		}
	}
	if count == 0 {
		return 0.0
	}
	return sum / float64(count)
}

func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStd computes the sample standard deviation, 0.0 when fewer than 2
// values exist
func sampleStd(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0.0
	}
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance)
}

// downsideStd computes the standard deviation of negative returns only,
// 0.0 when none exist
func downsideStd(returns []float64) float64 {
	sum := 0.0
	count := 0
	for _, r := range returns {
		if r < 0 {
			sum += r * r
			count++
		}
	}
	if count == 0 {
		return 0.0
	}
	return math.Sqrt(sum / float64(count))
}
