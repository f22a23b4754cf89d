package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a sugared logger. "debug" uses the development encoder,
// anything else the production JSON encoder at that level.
func New(level string) (*zap.SugaredLogger, error) {
	if level == "debug" {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("failed to build logger: %w", err)
		}
		return logger.Sugar(), nil
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Sugar(), nil
}

// MustNew is New for process startup.
func MustNew(level string) *zap.SugaredLogger {
	sl, err := New(level)
	if err != nil {
		panic("cannot initialize zap")
	}
	return sl
}
