package risk

import (
	"math"
	"sync"
	"time"

	"github.com/quantforge/risk-engine/internal/engerr"
	"github.com/quantforge/risk-engine/internal/kelly"
	"github.com/quantforge/risk-engine/internal/logger"
	"github.com/quantforge/risk-engine/internal/monitoring"
	"github.com/quantforge/risk-engine/internal/volatility"
)

// Config holds the orchestrator parameters.
// Expected domains: InitialCapital > 0, 0 < MinPositionSize < MaxPositionSize <= 1,
// 0 < MaxDrawdownLimit <= 1.
type Config struct {
	InitialCapital   float64 `json:"initial_capital"`
	MinPositionSize  float64 `json:"min_position_size"`
	MaxPositionSize  float64 `json:"max_position_size"`
	MaxDrawdownLimit float64 `json:"max_drawdown_limit"`
	RiskFreeRate     float64 `json:"risk_free_rate"`
	RiskAversion     float64 `json:"risk_aversion"`
}

// DefaultConfig returns the default orchestrator parameters
func DefaultConfig() Config {
	return Config{
		InitialCapital:   100000.0,
		MinPositionSize:  0.01,
		MaxPositionSize:  0.25,
		MaxDrawdownLimit: 0.20,
		RiskFreeRate:     0.02,
		RiskAversion:     kelly.DefaultRiskAversion,
	}
}

// tradingDaysPerYear is the annualization factor for the risk ratios
const tradingDaysPerYear = 252.0

// Manager owns the portfolio state and orchestrates the Kelly calculator and
// volatility gate to size each trade. Sizing evaluations are side-effect-free
// apart from the gate's regime-history append; position updates mutate shared
// state and are serialized behind the manager mutex.
type Manager struct {
	cfg   Config
	kelly *kelly.Calculator
	gate  *volatility.Gate
	log   *logger.Logger

	mu              sync.Mutex
	currentCapital  float64
	peakCapital     float64
	returnsHistory  []float64
	drawdownHistory []float64
	positions       map[string]*Position
	totalTrades     int
	winningTrades   int
	losingTrades    int
	totalPnL        float64
}

// NewManager creates a risk manager after validating the documented
// configuration domains. The logger may be nil.
func NewManager(cfg Config, kc *kelly.Calculator, gate *volatility.Gate, log *logger.Logger) (*Manager, error) {
	if cfg.InitialCapital <= 0 {
		return nil, engerr.NewValidationError("risk", "NewManager", "initial capital must be positive")
	}
	if cfg.MinPositionSize <= 0 || cfg.MinPositionSize >= cfg.MaxPositionSize {
		return nil, engerr.NewValidationError("risk", "NewManager", "require 0 < min position size < max position size")
	}
	if cfg.MaxPositionSize > 1 {
		return nil, engerr.NewValidationError("risk", "NewManager", "max position size must not exceed 1")
	}
	if cfg.MaxDrawdownLimit <= 0 || cfg.MaxDrawdownLimit > 1 {
		return nil, engerr.NewValidationError("risk", "NewManager", "max drawdown limit must be in (0, 1]")
	}
	if kc == nil || gate == nil {
		return nil, engerr.NewConfigurationError("risk", "NewManager", "kelly calculator and volatility gate are required")
	}

	return &Manager{
		cfg:            cfg,
		kelly:          kc,
		gate:           gate,
		log:            log,
		currentCapital: cfg.InitialCapital,
		peakCapital:    cfg.InitialCapital,
		positions:      make(map[string]*Position),
	}, nil
}

// CalculatePositionSize evaluates one trading signal and returns either a
// gated result (size 0.0, reason in metadata) or a sized result computed via
// the requested method and adjusted for the volatility regime.
func (m *Manager) CalculatePositionSize(req SizingRequest) *SizingResult {
	regime := m.gate.Classify(req.Symbol, req.Volatility)

	if m.gate.ShouldGate(req.Volatility, req.Confidence) {
		result := &SizingResult{
			PositionSize:   0.0,
			Method:         req.Method,
			Confidence:     req.Confidence,
			RiskScore:      riskScore(req.Volatility, req.Confidence),
			Volatility:     req.Volatility,
			ExpectedReturn: req.ExpectedReturn,
			MaxDrawdown:    m.maxDrawdown(),
			Metadata: map[string]interface{}{
				"gated":  true,
				"reason": "volatility_or_confidence",
				"regime": regime.String(),
			},
			Timestamp: time.Now(),
		}

		monitoring.RecordGatedDecision(req.Symbol, "volatility_or_confidence")
		if m.log != nil {
			m.log.LogSizingDecision(req.Symbol, req.Method.String(), 0.0, true, "volatility_or_confidence")
		}
		return result
	}

	baseSize := m.baseSize(req)
	adjustedSize := m.gate.AdjustSize(baseSize, req.Volatility, regime, req.Confidence)

	result := &SizingResult{
		PositionSize:   adjustedSize,
		Method:         req.Method,
		Confidence:     req.Confidence,
		RiskScore:      riskScore(req.Volatility, req.Confidence),
		Volatility:     req.Volatility,
		ExpectedReturn: req.ExpectedReturn,
		MaxDrawdown:    m.maxDrawdown(),
		Metadata: map[string]interface{}{
			"gated":         false,
			"regime":        regime.String(),
			"base_size":     baseSize,
			"adjusted_size": adjustedSize,
		},
		Timestamp: time.Now(),
	}

	monitoring.RecordSizingDecision(req.Symbol, req.Method.String(), adjustedSize, result.RiskScore)
	if m.log != nil {
		m.log.LogSizingDecision(req.Symbol, req.Method.String(), adjustedSize, false, "")
	}
	return result
}

// baseSize dispatches to the requested sizing method
func (m *Manager) baseSize(req SizingRequest) float64 {
	maxFraction := m.kelly.Config().MaxFraction

	switch req.Method {
	case MethodKelly:
		if req.HasTradeStats {
			return m.kelly.Fraction(req.WinRate, req.AvgWin, req.AvgLoss, req.Confidence)
		}
		return m.kelly.RiskAdjusted(req.ExpectedReturn, req.Volatility, req.Confidence, m.cfg.RiskAversion)
	case MethodFixedFraction:
		return maxFraction * req.Confidence
	case MethodVolatilityBased:
		return math.Min(maxFraction, 0.1/req.Volatility) * req.Confidence
	case MethodRiskParity:
		return (maxFraction / req.Volatility) * req.Confidence
	default:
		return m.cfg.MinPositionSize
	}
}

// riskScore averages a volatility component and a confidence shortfall
// component, clamped to [0,1]
func riskScore(vol, confidence float64) float64 {
	volScore := math.Min(vol/2, 1.0)
	score := (volScore + (1 - confidence)) / 2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// UpdatePosition records a fill for the symbol, updating capital, peak,
// drawdown and returns histories, and the trade counters. A zero P&L counts
// as a losing trade.
func (m *Manager) UpdatePosition(symbol string, positionSize, entryPrice, currentPrice float64) {
	m.mu.Lock()

	pnl := positionSize * (currentPrice - entryPrice)

	m.positions[symbol] = &Position{
		Symbol:       symbol,
		Size:         positionSize,
		EntryPrice:   entryPrice,
		CurrentPrice: currentPrice,
		PnL:          pnl,
		UpdatedAt:    time.Now(),
	}

	m.currentCapital += pnl
	m.totalPnL += pnl

	// Peak is raised before the drawdown is computed, so drawdown >= 0 holds
	// by construction
	if m.currentCapital > m.peakCapital {
		m.peakCapital = m.currentCapital
	}
	drawdown := (m.peakCapital - m.currentCapital) / m.peakCapital
	m.drawdownHistory = append(m.drawdownHistory, drawdown)
	m.returnsHistory = append(m.returnsHistory, m.currentCapital)

	m.totalTrades++
	if pnl > 0 {
		m.winningTrades++
	} else {
		m.losingTrades++
	}

	capital := m.currentCapital
	peak := m.peakCapital
	m.mu.Unlock()

	monitoring.UpdatePortfolio(capital, peak, drawdown)
	if m.log != nil {
		m.log.LogPositionUpdate(symbol, pnl, capital, drawdown)
	}
}

// maxDrawdown returns the largest recorded drawdown, 0.0 when none exist
func (m *Manager) maxDrawdown() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	maxDD := 0.0
	for _, dd := range m.drawdownHistory {
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// Position returns a copy of the symbol's position record
func (m *Manager) Position(symbol string) (Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Positions returns a copy of all position records keyed by symbol
func (m *Manager) Positions() map[string]Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Position, len(m.positions))
	for symbol, pos := range m.positions {
		out[symbol] = *pos
	}
	return out
}

// CapitalHistory returns a copy of the recorded capital levels, oldest first
func (m *Manager) CapitalHistory() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.returnsHistory...)
}

// DrawdownHistory returns a copy of the recorded drawdown observations,
// oldest first
func (m *Manager) DrawdownHistory() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.drawdownHistory...)
}

// Stats returns a summary of the portfolio state
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	winRate := 0.0
	if m.totalTrades > 0 {
		winRate = float64(m.winningTrades) / float64(m.totalTrades)
	}

	maxDD := 0.0
	for _, dd := range m.drawdownHistory {
		if dd > maxDD {
			maxDD = dd
		}
	}

	return Stats{
		InitialCapital:   m.cfg.InitialCapital,
		CurrentCapital:   m.currentCapital,
		PeakCapital:      m.peakCapital,
		TotalPnL:         m.totalPnL,
		CumulativeReturn: (m.currentCapital - m.cfg.InitialCapital) / m.cfg.InitialCapital,
		MaxDrawdown:      maxDD,
		TotalTrades:      m.totalTrades,
		WinningTrades:    m.winningTrades,
		LosingTrades:     m.losingTrades,
		WinRate:          winRate,
		OpenPositions:    len(m.positions),
	}
}
