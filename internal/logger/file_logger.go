package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger represents a file logger for risk engine activity
type Logger struct {
	name    string
	logFile *os.File
	logger  *log.Logger
	mu      sync.Mutex
	logDir  string
}

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelInfo     LogLevel = "INFO"
	LogLevelWarning  LogLevel = "WARN"
	LogLevelError    LogLevel = "ERROR"
	LogLevelDecision LogLevel = "DECISION"
	LogLevelTrade    LogLevel = "TRADE"
)

// NewLogger creates a new file logger for the named engine instance
func NewLogger(name string) (*Logger, error) {
	// Create log directory if it doesn't exist
	logDir := "logs"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Create log filename with timestamp
	timestamp := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", name, timestamp)
	logPath := filepath.Join(logDir, filename)

	// Open or create log file
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// Create logger with no prefix (we add our own formatting)
	logger := log.New(file, "", 0)

	l := &Logger{
		name:    name,
		logFile: file,
		logger:  logger,
		logDir:  logDir,
	}

	// Write session start header
	l.writeSessionHeader()

	return l, nil
}

// writeSessionHeader writes a session start header to the log
func (l *Logger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	header := fmt.Sprintf(`
================================================================================
RISK ENGINE SESSION STARTED
================================================================================
Engine: %s
Started: %s
Log File: %s_%s.log
================================================================================
`, l.name, time.Now().Format("2006-01-02 15:04:05"),
		l.name, time.Now().Format("2006-01-02"))

	l.logger.Print(header)
}

// Log writes a formatted log entry with the specified level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	logEntry := fmt.Sprintf("[%s] [%s] %s", timestamp, level, message)

	l.logger.Println(logEntry)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// Decision logs a sizing decision
func (l *Logger) Decision(format string, args ...interface{}) {
	l.Log(LogLevelDecision, format, args...)
}

// Trade logs a position update
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// LogSizingDecision logs the outcome of a position sizing evaluation
func (l *Logger) LogSizingDecision(symbol, method string, size float64, gated bool, reason string) {
	if gated {
		l.Decision("%s sizing GATED (%s) - size forced to 0", symbol, reason)
		return
	}
	l.Decision("%s sized via %s - position size %.6f", symbol, method, size)
}

// LogPositionUpdate logs a position update and the resulting capital
func (l *Logger) LogPositionUpdate(symbol string, pnl, capital, drawdown float64) {
	l.Trade("%s position updated - PnL: %.4f, Capital: %.2f, Drawdown: %.4f", symbol, pnl, capital, drawdown)
}

// LogError logs error with context
func (l *Logger) LogError(context string, err error) {
	l.Error("%s: %v", context, err)
}

// Close closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		// Write session end footer
		timestamp := time.Now().Format("2006-01-02 15:04:05")
		footer := fmt.Sprintf(`
================================================================================
RISK ENGINE SESSION ENDED
================================================================================
Ended: %s
================================================================================

`, timestamp)
		l.logger.Print(footer)

		return l.logFile.Close()
	}
	return nil
}

// GetLogPath returns the current log file path
func (l *Logger) GetLogPath() string {
	timestamp := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", l.name, timestamp)
	return filepath.Join(l.logDir, filename)
}
