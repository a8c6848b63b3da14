package kelly

import (
	"gonum.org/v1/gonum/mat"

	"github.com/quantforge/risk-engine/internal/logger"
)

// DefaultRiskAversion is the risk aversion coefficient used when the caller
// does not supply one explicitly.
const DefaultRiskAversion = 3.0

// Config holds the Kelly calculator parameters.
// Expected domains: 0 < MinFraction < MaxFraction <= 1, 0 < ConfidenceFactor <= 1.
type Config struct {
	MaxFraction      float64 `json:"max_fraction"`
	MinFraction      float64 `json:"min_fraction"`
	ConfidenceFactor float64 `json:"confidence_factor"`
	RiskFreeRate     float64 `json:"risk_free_rate"`
}

// DefaultConfig returns conservative half-Kelly defaults
func DefaultConfig() Config {
	return Config{
		MaxFraction:      0.25,
		MinFraction:      0.01,
		ConfidenceFactor: 0.5,
		RiskFreeRate:     0.02,
	}
}

// Calculator computes position-size fractions from win/loss statistics or
// from expected-return/volatility/covariance inputs. All methods degrade to
// safe values on invalid numeric input instead of returning errors.
type Calculator struct {
	cfg Config
	log *logger.Logger
}

// NewCalculator creates a new Kelly calculator. The logger may be nil.
func NewCalculator(cfg Config, log *logger.Logger) *Calculator {
	return &Calculator{
		cfg: cfg,
		log: log,
	}
}

// Config returns the calculator configuration
func (c *Calculator) Config() Config {
	return c.cfg
}

// Fraction computes the classic Kelly fraction from win/loss statistics.
// f = (b*p - q) / b where b = avgWin/avgLoss, q = 1-p, dampened by
// confidence and the configured confidence factor, then clamped into
// [MinFraction, MaxFraction]. Degenerate inputs (win rate outside (0,1),
// non-positive average loss) yield 0.0.
func (c *Calculator) Fraction(winRate, avgWin, avgLoss, confidence float64) float64 {
	if winRate <= 0 || winRate >= 1 || avgLoss <= 0 {
		return 0.0
	}

	b := avgWin / avgLoss
	q := 1 - winRate
	f := (b*winRate - q) / b

	f *= confidence * c.cfg.ConfidenceFactor

	return c.clamp(f)
}

// Portfolio computes per-asset Kelly fractions from an expected-return
// vector and a covariance matrix: f = Cov^-1 * E, scaled by confidence and
// the confidence factor, each component clamped to [MinFraction, MaxFraction].
// If the covariance matrix is singular (or malformed), the failure is logged
// and every asset falls back to MinFraction.
func (c *Calculator) Portfolio(expectedReturns []float64, covariance [][]float64, confidence float64) []float64 {
	n := len(expectedReturns)
	if n == 0 {
		return nil
	}

	flat, ok := flatten(covariance, n)
	if !ok {
		if c.log != nil {
			c.log.Warning("portfolio kelly: covariance matrix is not %dx%d, falling back to min fraction", n, n)
		}
		return c.minFractionVector(n)
	}

	cov := mat.NewDense(n, n, flat)
	e := mat.NewVecDense(n, expectedReturns)

	var f mat.VecDense
	if err := f.SolveVec(cov, e); err != nil {
		if c.log != nil {
			c.log.Warning("portfolio kelly: covariance solve failed (%v), falling back to min fraction", err)
		}
		return c.minFractionVector(n)
	}

	scale := confidence * c.cfg.ConfidenceFactor
	fractions := make([]float64, n)
	for i := 0; i < n; i++ {
		fractions[i] = c.clamp(f.AtVec(i) * scale)
	}
	return fractions
}

// RiskAdjusted computes a continuous-time Kelly fraction from a single
// expected return and volatility: f = (mu - r) / (gamma * sigma^2), scaled
// and clamped like Fraction. Non-positive volatility yields 0.0.
func (c *Calculator) RiskAdjusted(expectedReturn, volatility, confidence, riskAversion float64) float64 {
	if volatility <= 0 {
		return 0.0
	}

	f := (expectedReturn - c.cfg.RiskFreeRate) / (riskAversion * volatility * volatility)
	f *= confidence * c.cfg.ConfidenceFactor

	return c.clamp(f)
}

// clamp bounds a fraction into [MinFraction, MaxFraction]
func (c *Calculator) clamp(f float64) float64 {
	if f < c.cfg.MinFraction {
		return c.cfg.MinFraction
	}
	if f > c.cfg.MaxFraction {
		return c.cfg.MaxFraction
	}
	return f
}

func (c *Calculator) minFractionVector(n int) []float64 {
	fractions := make([]float64, n)
	for i := range fractions {
		fractions[i] = c.cfg.MinFraction
	}
	return fractions
}

// flatten converts a square covariance matrix into row-major form,
// reporting false when the dimensions do not match
func flatten(covariance [][]float64, n int) ([]float64, bool) {
	if len(covariance) != n {
		return nil, false
	}
	flat := make([]float64, 0, n*n)
	for _, row := range covariance {
		if len(row) != n {
			return nil, false
		}
		flat = append(flat, row...)
	}
	return flat, true
}
