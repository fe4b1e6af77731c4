// Package logging provides categorized logging for attngrader on a zap core.
// Each subsystem logs under its own category so a grading run can be traced
// per concern. Logging is quiet (warn and above) unless debug mode is enabled.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a logging subsystem.
type Category string

const (
	CategoryNotebook Category = "notebook" // Notebook loading and cell extraction
	CategoryExecutor Category = "executor" // Cumulative cell replay
	CategoryGrader   Category = "grader"   // Section grading and reports
	CategoryLLM      Category = "llm"      // Judge provider calls
	CategoryCache    Category = "cache"    // Verdict cache
	CategoryConfig   Category = "config"   // Configuration loading
)

var (
	mu      sync.RWMutex
	base    *zap.SugaredLogger
	loggers = map[Category]*zap.SugaredLogger{}
)

func init() {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	l, _ := cfg.Build()
	base = l.Sugar()
}

// Configure replaces the root logger. Debug mode switches to development
// encoding at debug level.
func Configure(debug bool) {
	mu.Lock()
	defer mu.Unlock()
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return
	}
	base = l.Sugar()
	loggers = map[Category]*zap.SugaredLogger{}
}

// SetLogger installs an externally built logger as the root. Used by tests
// and by the CLI when it owns logger construction.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l.Sugar()
	loggers = map[Category]*zap.SugaredLogger{}
}

// Get returns the logger for a category.
func Get(c Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[c]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()
	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[c]; ok {
		return l
	}
	l := base.Named(string(c))
	loggers[c] = l
	return l
}

// Executor logs at info level under the executor category.
func Executor(format string, args ...interface{}) { Get(CategoryExecutor).Infof(format, args...) }

// ExecutorWarn logs at warn level under the executor category.
func ExecutorWarn(format string, args ...interface{}) { Get(CategoryExecutor).Warnf(format, args...) }

// Grader logs at info level under the grader category.
func Grader(format string, args ...interface{}) { Get(CategoryGrader).Infof(format, args...) }

// LLM logs at info level under the llm category.
func LLM(format string, args ...interface{}) { Get(CategoryLLM).Infof(format, args...) }

// LLMWarn logs at warn level under the llm category.
func LLMWarn(format string, args ...interface{}) { Get(CategoryLLM).Warnf(format, args...) }

// Cache logs at debug level under the cache category.
func Cache(format string, args ...interface{}) { Get(CategoryCache).Debugf(format, args...) }
