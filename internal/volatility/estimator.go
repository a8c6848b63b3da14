package volatility

import (
	"math"
)

// EstimationMethod selects the volatility estimator
type EstimationMethod string

const (
	MethodStandard EstimationMethod = "standard"
	MethodEWMA     EstimationMethod = "ewm"
	MethodGARCH    EstimationMethod = "garch"
)

// Simplified GARCH(1,1) parameters. Fixed, not fitted from data.
const (
	garchOmega = 0.0001
	garchAlpha = 0.1
	garchBeta  = 0.85
)

// minGARCHObservations is the observation count below which the GARCH
// estimator falls back to the standard deviation
const minGARCHObservations = 10

// Estimate computes the volatility of a return series using the selected
// method. Fewer than 2 observations yield 0.0. Unknown methods fall back to
// the standard estimator.
func (g *Gate) Estimate(returns []float64, method EstimationMethod) float64 {
	if len(returns) < 2 {
		return 0.0
	}

	switch method {
	case MethodEWMA:
		return g.estimateEWMA(returns)
	case MethodGARCH:
		if len(returns) < minGARCHObservations {
			return estimateStandard(returns)
		}
		return estimateGARCH(returns)
	default:
		return estimateStandard(returns)
	}
}

// estimateStandard computes the sample standard deviation
func estimateStandard(returns []float64) float64 {
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns) - 1)

	return math.Sqrt(variance)
}

// estimateEWMA computes a recursive exponentially-weighted variance with
// alpha = 2/(window+1), seeded from the first observation, square-rooted
func (g *Gate) estimateEWMA(returns []float64) float64 {
	alpha := 2.0 / (float64(g.cfg.Window) + 1.0)

	ewMean := returns[0]
	ewVar := 0.0
	for _, r := range returns[1:] {
		diff := r - ewMean
		incr := alpha * diff
		ewMean += incr
		ewVar = (1 - alpha) * (ewVar + diff*incr)
	}

	return math.Sqrt(ewVar)
}

// estimateGARCH runs the simplified GARCH(1,1) recursion seeded with the
// sample variance: var_t = omega + alpha*r^2 + beta*var_{t-1}
func estimateGARCH(returns []float64) float64 {
	std := estimateStandard(returns)
	variance := std * std
	for _, r := range returns {
		variance = garchOmega + garchAlpha*r*r + garchBeta*variance
	}
	return math.Sqrt(variance)
}
