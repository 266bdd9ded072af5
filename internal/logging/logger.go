// Package logging provides categorized file-based logging for the
// agent economy engine. Logs are written per category under the
// configured directory; when debug mode is off the whole package is a
// silent no-op so the hot submission path pays nothing.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/system.
type Category string

const (
	CategoryBoot        Category = "boot"        // Startup and wiring
	CategoryEconomy     Category = "economy"     // Pool debits, payouts, cycle rollover
	CategoryContract    Category = "contract"    // Fate decisions, terminations
	CategorySurvival    Category = "survival"    // Survival sweeps, extinctions
	CategoryFeedback    Category = "feedback"    // Engagement telemetry, threshold moves
	CategoryEnforcement Category = "enforcement" // Enforcement passes
	CategoryStore       Category = "store"       // Ledger store operations
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

type settings struct {
	debugMode  bool
	level      int
	categories map[string]bool
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	cfg       settings
	cfgMu     sync.RWMutex
)

// Logger writes timestamped lines for one category.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

// Initialize sets up the logging directory. Call once at startup.
// With debugMode false this is a no-op and no files are created.
func Initialize(dir string, debugMode bool, level string, categories map[string]bool) error {
	cfgMu.Lock()
	cfg = settings{
		debugMode:  debugMode,
		level:      parseLevel(level),
		categories: categories,
	}
	cfgMu.Unlock()

	if !debugMode {
		return nil
	}
	if dir == "" {
		return fmt.Errorf("logging directory required in debug mode")
	}
	logsDir = dir
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== Agent Economy Logging Initialized ===")
	boot.Info("Logs directory: %s", logsDir)
	boot.Info("Log level: %s", level)
	return nil
}

func parseLevel(level string) int {
	switch level {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func enabled(category Category) bool {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	if !cfg.debugMode {
		return false
	}
	if cfg.categories == nil {
		return true
	}
	on, listed := cfg.categories[string(category)]
	return !listed || on
}

// Get returns the logger for a category, creating it on first use.
func Get(category Category) *Logger {
	loggersMu.RLock()
	l, ok := loggers[category]
	loggersMu.RUnlock()
	if ok {
		return l
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	l = &Logger{category: category}
	if enabled(category) && logsDir != "" {
		path := filepath.Join(logsDir, string(category)+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			l.file = f
			l.logger = log.New(f, "", 0)
		} else {
			fmt.Fprintf(os.Stderr, "[logging] cannot open %s: %v\n", path, err)
		}
	}
	loggers[category] = l
	return l
}

func (l *Logger) write(level int, levelName, format string, args ...interface{}) {
	cfgMu.RLock()
	minLevel := cfg.level
	cfgMu.RUnlock()
	if l.logger == nil || level < minLevel || !enabled(l.category) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("%s [%s] %s", time.Now().Format(time.RFC3339), levelName, msg)
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.write(LevelDebug, "DEBUG", format, args...)
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.write(LevelInfo, "INFO", format, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(LevelWarn, "WARN", format, args...)
}

// Error logs at error level.
func (l *Logger) Error(format string, args ...interface{}) {
	l.write(LevelError, "ERROR", format, args...)
}

// Convenience helpers for the busiest categories.

// Economy logs an info message in the economy category.
func Economy(format string, args ...interface{}) {
	Get(CategoryEconomy).Info(format, args...)
}

// Contract logs an info message in the contract category.
func Contract(format string, args ...interface{}) {
	Get(CategoryContract).Info(format, args...)
}

// Enforcement logs an info message in the enforcement category.
func Enforcement(format string, args ...interface{}) {
	Get(CategoryEnforcement).Info(format, args...)
}

// Timer measures the duration of an operation and logs it on Stop.
type Timer struct {
	category Category
	name     string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, name string) *Timer {
	return &Timer{category: category, name: name, start: time.Now()}
}

// Stop logs the elapsed time at debug level.
func (t *Timer) Stop() {
	Get(t.category).Debug("%s took %s", t.name, time.Since(t.start))
}

// Close flushes and closes all open log files.
func Close() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
			l.file = nil
			l.logger = nil
		}
	}
}
