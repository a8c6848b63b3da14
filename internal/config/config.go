package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/quantforge/risk-engine/internal/engerr"
	"github.com/quantforge/risk-engine/internal/kelly"
	"github.com/quantforge/risk-engine/internal/risk"
	"github.com/quantforge/risk-engine/internal/volatility"
)

// Config aggregates the engine configuration. Values come from the
// environment (with a .env file honored when present) or a JSON file;
// environment values win over file values.
type Config struct {
	Environment string `json:"environment"`
	LogName     string `json:"log_name"`

	Engine     risk.Config       `json:"engine"`
	Kelly      kelly.Config      `json:"kelly"`
	Volatility volatility.Config `json:"volatility"`

	Monitoring struct {
		PrometheusPort int `json:"prometheus_port"`
		HealthPort     int `json:"health_port"`
	} `json:"monitoring"`
}

// Load builds the configuration from environment variables, applying
// defaults for anything unset. A .env file in the working directory is
// loaded first when present.
func Load() *Config {
	// Missing .env is fine; explicit environment still applies
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENV", "development"),
		LogName:     getEnv("LOG_NAME", "risk-engine"),

		Engine: risk.Config{
			InitialCapital:   getEnvFloat("INITIAL_CAPITAL", 100000.0),
			MinPositionSize:  getEnvFloat("MIN_POSITION_SIZE", 0.01),
			MaxPositionSize:  getEnvFloat("MAX_POSITION_SIZE", 0.25),
			MaxDrawdownLimit: getEnvFloat("MAX_DRAWDOWN_LIMIT", 0.20),
			RiskFreeRate:     getEnvFloat("RISK_FREE_RATE", 0.02),
			RiskAversion:     getEnvFloat("RISK_AVERSION", kelly.DefaultRiskAversion),
		},

		Kelly: kelly.Config{
			MaxFraction:      getEnvFloat("KELLY_MAX_FRACTION", 0.25),
			MinFraction:      getEnvFloat("KELLY_MIN_FRACTION", 0.01),
			ConfidenceFactor: getEnvFloat("KELLY_CONFIDENCE_FACTOR", 0.5),
			RiskFreeRate:     getEnvFloat("RISK_FREE_RATE", 0.02),
		},

		Volatility: volatility.Config{
			Window:          getEnvInt("VOLATILITY_WINDOW", 20),
			HighThreshold:   getEnvFloat("HIGH_VOLATILITY_THRESHOLD", 2.0),
			LowThreshold:    getEnvFloat("LOW_VOLATILITY_THRESHOLD", 0.5),
			ReductionFactor: getEnvFloat("POSITION_REDUCTION_FACTOR", 0.5),
			MinPositionSize: getEnvFloat("MIN_POSITION_SIZE", 0.01),
			MinConfidence:   getEnvFloat("MIN_CONFIDENCE_THRESHOLD", 0.6),
		},
	}

	cfg.Monitoring.PrometheusPort = getEnvInt("PROMETHEUS_PORT", 8080)
	cfg.Monitoring.HealthPort = getEnvInt("HEALTH_PORT", 8081)

	return cfg
}

// LoadFile reads a JSON configuration file on top of the defaults
func LoadFile(path string) (*Config, error) {
	cfg := Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the documented configuration domains
func (c *Config) Validate() error {
	if c.Engine.InitialCapital <= 0 {
		return engerr.NewConfigurationError("config", "Validate", "initial capital must be positive")
	}
	if c.Engine.MinPositionSize <= 0 || c.Engine.MinPositionSize >= c.Engine.MaxPositionSize {
		return engerr.NewConfigurationError("config", "Validate", "require 0 < min position size < max position size")
	}
	if c.Engine.MaxPositionSize > 1 {
		return engerr.NewConfigurationError("config", "Validate", "max position size must not exceed 1")
	}
	if c.Engine.MaxDrawdownLimit <= 0 || c.Engine.MaxDrawdownLimit > 1 {
		return engerr.NewConfigurationError("config", "Validate", "max drawdown limit must be in (0, 1]")
	}
	if c.Kelly.MinFraction <= 0 || c.Kelly.MinFraction >= c.Kelly.MaxFraction || c.Kelly.MaxFraction > 1 {
		return engerr.NewConfigurationError("config", "Validate", "require 0 < min fraction < max fraction <= 1")
	}
	if c.Kelly.ConfidenceFactor <= 0 || c.Kelly.ConfidenceFactor > 1 {
		return engerr.NewConfigurationError("config", "Validate", "confidence factor must be in (0, 1]")
	}
	if c.Volatility.LowThreshold <= 0 || c.Volatility.HighThreshold <= c.Volatility.LowThreshold {
		return engerr.NewConfigurationError("config", "Validate", "require high volatility threshold > low threshold > 0")
	}
	if c.Volatility.ReductionFactor <= 0 || c.Volatility.ReductionFactor >= 1 {
		return engerr.NewConfigurationError("config", "Validate", "position reduction factor must be in (0, 1)")
	}
	if c.Volatility.Window < 2 {
		return engerr.NewConfigurationError("config", "Validate", "volatility window must be at least 2")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
