package logutil

import (
    "fmt"
    "os"
    "strings"

    "go.uber.org/atomic"
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
)

var jsonMode = atomic.NewBool(false)

func init() {
    if os.Getenv("LSF_LOG_JSON") == "1" || os.Getenv("LSF_LOG_FORMAT") == "json" {
        jsonMode.Store(true)
    }
}

// SetJSON switches loggers built afterwards to the JSON encoder.
func SetJSON(enabled bool) { jsonMode.Store(enabled) }

func JSON() bool { return jsonMode.Load() }

// New builds a logger at the given level ("debug", "info", "warn", "error").
// JSON output is used when enabled via SetJSON or LSF_LOG_JSON=1.
func New(level string) (*zap.Logger, error) {
    lvl := zapcore.InfoLevel
    if level != "" {
        if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
            return nil, fmt.Errorf("logutil: invalid level %q: %w", level, err)
        }
    }
    var cfg zap.Config
    if jsonMode.Load() {
        cfg = zap.NewProductionConfig()
        cfg.EncoderConfig.TimeKey = "ts"
        cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
    } else {
        cfg = zap.NewDevelopmentConfig()
        cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
        cfg.DisableStacktrace = true
    }
    cfg.Level = zap.NewAtomicLevelAt(lvl)
    return cfg.Build()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
    if l == nil { return zap.NewNop() }
    return l
}

// Named returns a child logger for a component.
func Named(l *zap.Logger, name string) *zap.Logger { return OrNop(l).Named(name) }
