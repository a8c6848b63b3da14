package main

import (
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/quantforge/risk-engine/internal/config"
	"github.com/quantforge/risk-engine/internal/kelly"
	"github.com/quantforge/risk-engine/internal/logger"
	"github.com/quantforge/risk-engine/internal/monitoring"
	"github.com/quantforge/risk-engine/internal/risk"
	"github.com/quantforge/risk-engine/internal/volatility"
)

var symbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}

func main() {
	log.Println("=== Risk Engine Demo ===")

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log.Printf("Configuration loaded: %s mode", cfg.Environment)

	// Initialize logging
	fileLog, err := logger.NewLogger(cfg.LogName)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer fileLog.Close()

	// Initialize engine components
	calc := kelly.NewCalculator(cfg.Kelly, fileLog)
	gate := volatility.NewGate(cfg.Volatility)

	manager, err := risk.NewManager(cfg.Engine, calc, gate, fileLog)
	if err != nil {
		log.Fatalf("Failed to create risk manager: %v", err)
	}
	log.Println("Risk manager initialized")

	// Setup monitoring servers
	healthChecker := monitoring.NewHealthChecker()
	setupMonitoringServers(cfg, healthChecker)

	// Run the evaluation loop until done or interrupted
	done := make(chan struct{})
	go runEvaluationLoop(manager, gate, healthChecker, done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-done:
		log.Println("Evaluation loop completed")
	case <-sigChan:
		log.Println("Interrupted by user")
	}

	printSummary(manager)
	log.Printf("Decision log written to %s", fileLog.GetLogPath())
}

// setupMonitoringServers starts the Prometheus and health endpoints
func setupMonitoringServers(cfg *config.Config, healthChecker *monitoring.HealthChecker) {
	go func() {
		http.Handle("/metrics", monitoring.NewMetricsHandler())
		addr := fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort)
		log.Printf("Prometheus metrics available at http://localhost%s/metrics", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/health", healthChecker)
		addr := fmt.Sprintf(":%d", cfg.Monitoring.HealthPort)
		log.Printf("Health check available at http://localhost%s/health", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("Health server error: %v", err)
		}
	}()
}

// runEvaluationLoop drives the engine with synthetic signals
func runEvaluationLoop(manager *risk.Manager, gate *volatility.Gate, healthChecker *monitoring.HealthChecker, done chan<- struct{}) {
	defer close(done)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	methods := []risk.SizingMethod{
		risk.MethodKelly,
		risk.MethodFixedFraction,
		risk.MethodVolatilityBased,
		risk.MethodRiskParity,
	}

	const cycles = 40
	for i := 0; i < cycles; i++ {
		symbol := symbols[i%len(symbols)]

		// Synthetic return series for the volatility estimate
		returns := make([]float64, 30)
		scale := 0.01 + rng.Float64()*0.05
		for j := range returns {
			returns[j] = rng.NormFloat64() * scale
		}
		estimated := gate.Estimate(returns, volatility.MethodEWMA)

		req := risk.SizingRequest{
			Symbol:         symbol,
			ExpectedReturn: rng.NormFloat64() * 0.05,
			Volatility:     estimated * 20, // scale into threshold territory
			Confidence:     0.4 + rng.Float64()*0.6,
			Method:         methods[i%len(methods)],
		}

		result := manager.CalculatePositionSize(req)
		if result.Gated() {
			log.Printf("[%d/%d] %s gated (%v)", i+1, cycles, symbol, result.Metadata["reason"])
		} else {
			log.Printf("[%d/%d] %s %s -> size %.4f (regime %v)",
				i+1, cycles, symbol, req.Method, result.PositionSize, result.Metadata["regime"])

			// Simulate a fill and a subsequent price move
			entry := 100.0 + rng.Float64()*100
			current := entry * (1 + rng.NormFloat64()*0.02)
			manager.UpdatePosition(symbol, result.PositionSize*1000, entry, current)
		}

		healthChecker.RecordEvaluation(manager.Stats().CurrentCapital)
	}
}

// printSummary renders the final portfolio stats and risk metrics
func printSummary(manager *risk.Manager) {
	stats := manager.Stats()
	metrics := manager.Metrics()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("PORTFOLIO SUMMARY")
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"💰 Initial Capital", fmt.Sprintf("$%.2f", stats.InitialCapital)},
		{"💼 Current Capital", fmt.Sprintf("$%.2f", stats.CurrentCapital)},
		{"📈 Peak Capital", fmt.Sprintf("$%.2f", stats.PeakCapital)},
		{"💹 Total P&L", fmt.Sprintf("$%.2f", stats.TotalPnL)},
		{"📊 Cumulative Return", fmt.Sprintf("%.2f%%", stats.CumulativeReturn*100)},
		{"🔄 Total Trades", fmt.Sprintf("%d (W:%d / L:%d)", stats.TotalTrades, stats.WinningTrades, stats.LosingTrades)},
		{"🎯 Win Rate", fmt.Sprintf("%.1f%%", stats.WinRate*100)},
	})
	t.Render()
	fmt.Println()

	t = table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("RISK METRICS")
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"VaR 95%", fmt.Sprintf("%.4f", metrics.VaR95)},
		{"VaR 99%", fmt.Sprintf("%.4f", metrics.VaR99)},
		{"CVaR 95%", fmt.Sprintf("%.4f", metrics.CVaR95)},
		{"CVaR 99%", fmt.Sprintf("%.4f", metrics.CVaR99)},
		{"Max Drawdown", fmt.Sprintf("%.2f%%", metrics.MaxDrawdown*100)},
		{"Sharpe Ratio", fmt.Sprintf("%.4f", metrics.SharpeRatio)},
		{"Sortino Ratio", fmt.Sprintf("%.4f", metrics.SortinoRatio)},
		{"Calmar Ratio", fmt.Sprintf("%.4f", metrics.CalmarRatio)},
		{"Volatility (ann.)", fmt.Sprintf("%.4f", metrics.Volatility)},
	})
	t.Render()
}
