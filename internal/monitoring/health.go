package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

type HealthChecker struct {
	mu             sync.RWMutex
	lastEvaluation time.Time
	lastCapital    float64
	errors         []string
}

type HealthStatus struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	LastEvaluation time.Time `json:"last_evaluation"`
	LastCapital    float64   `json:"last_capital"`
	Uptime         string    `json:"uptime"`
	Errors         []string  `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		errors: make([]string, 0),
	}
}

// RecordEvaluation marks a completed sizing evaluation
func (h *HealthChecker) RecordEvaluation(capital float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastEvaluation = time.Now()
	h.lastCapital = capital
}

// RecordError appends an error to the health report
func (h *HealthChecker) RecordError(message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, message)
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if h.lastEvaluation.IsZero() || time.Since(h.lastEvaluation) > time.Hour {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if len(h.errors) > 0 {
		status = "unhealthy"
		code = http.StatusInternalServerError
	}

	health := HealthStatus{
		Status:         status,
		Timestamp:      time.Now(),
		LastEvaluation: h.lastEvaluation,
		LastCapital:    h.lastCapital,
		Uptime:         time.Since(startTime).String(),
		Errors:         h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}
