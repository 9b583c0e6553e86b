package logger

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Package logger provides the process-wide component logger. Every log line
// carries a component tag so that worker, resolver and transport output can
// be separated in aggregated logs.

var (
	mu   sync.RWMutex
	base = newLogger("text", zapcore.InfoLevel)
)

// Setup replaces the process logger. format is "json" or anything else for
// console output. Returns an error only for an unparseable level.
func Setup(format, level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}

	mu.Lock()
	base = newLogger(format, lvl)
	mu.Unlock()
	return nil
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

func newLogger(format string, lvl zapcore.Level) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), lvl)
	return zap.New(core)
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// zapFields renders the component tag plus the field map in stable order.
func zapFields(component string, fields map[string]any) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	out = append(out, zap.String("component", component))

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

func DebugC(component, msg string) { DebugCF(component, msg, nil) }
func InfoC(component, msg string)  { InfoCF(component, msg, nil) }
func WarnC(component, msg string)  { WarnCF(component, msg, nil) }
func ErrorC(component, msg string) { ErrorCF(component, msg, nil) }

func DebugCF(component, msg string, fields map[string]any) {
	current().Debug(msg, zapFields(component, fields)...)
}

func InfoCF(component, msg string, fields map[string]any) {
	current().Info(msg, zapFields(component, fields)...)
}

func WarnCF(component, msg string, fields map[string]any) {
	current().Warn(msg, zapFields(component, fields)...)
}

func ErrorCF(component, msg string, fields map[string]any) {
	current().Error(msg, zapFields(component, fields)...)
}
