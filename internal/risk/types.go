package risk

import (
	"time"
)

// SizingMethod selects the position sizing algorithm
type SizingMethod int

const (
	MethodKelly SizingMethod = iota
	MethodFixedFraction
	MethodVolatilityBased
	MethodRiskParity
	MethodAdaptive
)

func (m SizingMethod) String() string {
	switch m {
	case MethodKelly:
		return "KELLY"
	case MethodFixedFraction:
		return "FIXED_FRACTION"
	case MethodVolatilityBased:
		return "VOLATILITY_BASED"
	case MethodRiskParity:
		return "RISK_PARITY"
	case MethodAdaptive:
		return "ADAPTIVE"
	default:
		return "UNKNOWN"
	}
}

// SizingRequest carries the signal inputs for one sizing evaluation.
// WinRate/AvgWin/AvgLoss are optional trade statistics; set HasTradeStats
// when supplying them so the Kelly method uses the win/loss formula instead
// of the risk-adjusted one.
type SizingRequest struct {
	Symbol         string
	ExpectedReturn float64
	Volatility     float64
	Confidence     float64
	Method         SizingMethod

	WinRate       float64
	AvgWin        float64
	AvgLoss       float64
	HasTradeStats bool
}

// SizingResult is the immutable outcome of one sizing evaluation. A gated
// decision carries PositionSize 0.0 with Metadata["gated"] = true and a
// reason; callers must branch on the metadata, a zero size alone is not
// proof of gating.
type SizingResult struct {
	PositionSize   float64                `json:"position_size"`
	Method         SizingMethod           `json:"method"`
	Confidence     float64                `json:"confidence"`
	RiskScore      float64                `json:"risk_score"`
	Volatility     float64                `json:"volatility"`
	ExpectedReturn float64                `json:"expected_return"`
	MaxDrawdown    float64                `json:"max_drawdown"`
	Metadata       map[string]interface{} `json:"metadata"`
	Timestamp      time.Time              `json:"timestamp"`
}

// Gated reports whether this decision was gated
func (r *SizingResult) Gated() bool {
	gated, ok := r.Metadata["gated"].(bool)
	return ok && gated
}

// Metrics is an immutable snapshot of realized portfolio risk. All fields
// are 0.0 when fewer than 2 capital observations exist.
type Metrics struct {
	VaR95            float64 `json:"var_95"`
	VaR99            float64 `json:"var_99"`
	CVaR95           float64 `json:"cvar_95"`
	CVaR99           float64 `json:"cvar_99"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	SortinoRatio     float64 `json:"sortino_ratio"`
	CalmarRatio      float64 `json:"calmar_ratio"`
	Volatility       float64 `json:"volatility"`
	Beta             float64 `json:"beta"`
	Alpha            float64 `json:"alpha"`
	InformationRatio float64 `json:"information_ratio"`
}

// Position tracks one active instrument position, owned exclusively by the
// Manager and overwritten on each update
type Position struct {
	Symbol       string    `json:"symbol"`
	Size         float64   `json:"size"`
	EntryPrice   float64   `json:"entry_price"`
	CurrentPrice float64   `json:"current_price"`
	PnL          float64   `json:"pnl"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Stats summarizes the portfolio state for reporting
type Stats struct {
	InitialCapital   float64 `json:"initial_capital"`
	CurrentCapital   float64 `json:"current_capital"`
	PeakCapital      float64 `json:"peak_capital"`
	TotalPnL         float64 `json:"total_pnl"`
	CumulativeReturn float64 `json:"cumulative_return"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	TotalTrades      int     `json:"total_trades"`
	WinningTrades    int     `json:"winning_trades"`
	LosingTrades     int     `json:"losing_trades"`
	WinRate          float64 `json:"win_rate"`
	OpenPositions    int     `json:"open_positions"`
}
