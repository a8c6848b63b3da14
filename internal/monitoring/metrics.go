package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Sizing decision metrics
	sizingDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_sizing_decisions_total",
			Help: "Total number of position sizing decisions",
		},
		[]string{"symbol", "method"},
	)

	gatedDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_gated_decisions_total",
			Help: "Total number of gated sizing decisions",
		},
		[]string{"symbol", "reason"},
	)

	positionSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "risk_engine_position_size",
			Help:    "Distribution of computed position size fractions",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.15, 0.25, 0.5, 1.0},
		},
		[]string{"symbol"},
	)

	riskScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "risk_engine_risk_score",
			Help: "Risk score of the latest sizing decision",
		},
		[]string{"symbol"},
	)

	// Portfolio metrics
	currentCapital = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "risk_engine_current_capital",
			Help: "Current portfolio capital",
		},
	)

	peakCapital = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "risk_engine_peak_capital",
			Help: "Peak portfolio capital",
		},
	)

	currentDrawdown = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "risk_engine_current_drawdown",
			Help: "Current drawdown from peak capital",
		},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(sizingDecisionsTotal)
	prometheus.MustRegister(gatedDecisionsTotal)
	prometheus.MustRegister(positionSize)
	prometheus.MustRegister(riskScore)
	prometheus.MustRegister(currentCapital)
	prometheus.MustRegister(peakCapital)
	prometheus.MustRegister(currentDrawdown)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordSizingDecision records a non-gated sizing decision
func RecordSizingDecision(symbol, method string, size, score float64) {
	sizingDecisionsTotal.WithLabelValues(symbol, method).Inc()
	positionSize.WithLabelValues(symbol).Observe(size)
	riskScore.WithLabelValues(symbol).Set(score)
}

// RecordGatedDecision records a gated sizing decision
func RecordGatedDecision(symbol, reason string) {
	gatedDecisionsTotal.WithLabelValues(symbol, reason).Inc()
}

// UpdatePortfolio updates the portfolio gauges
func UpdatePortfolio(capital, peak, drawdown float64) {
	currentCapital.Set(capital)
	peakCapital.Set(peak)
	currentDrawdown.Set(drawdown)
}
