package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pyrite-run/pyrite/executor"
)

// New creates a zap logger for the given mode ("development" or
// "production") and level.
func New(mode, level string) (*zap.Logger, error) {
	var cfg zap.Config
	switch mode {
	case "development":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "production":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("invalid logging mode: %s, must be 'production' or 'development'", mode)
	}

	logLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid logging level: %s", level)
	}
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	return cfg.Build()
}

// Adapter exposes a zap logger through the executor Logger interface.
type Adapter struct {
	sugar *zap.SugaredLogger
}

// NewAdapter wraps a zap logger for use by executor backends.
func NewAdapter(logger *zap.Logger) *Adapter {
	return &Adapter{sugar: logger.Sugar()}
}

// Logf logs a formatted message at info level.
func (a *Adapter) Logf(format string, args ...any) {
	a.sugar.Infof(format, args...)
}

var _ executor.Logger = (*Adapter)(nil)
