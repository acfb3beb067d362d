package utils

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewSugaredLogger creates a sugared logger writing to stderr, keeping stdout
// free for command output.
// If verbose is true, it logs human-readable debug output, otherwise JSON at
// info level.
func NewSugaredLogger(verbose bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l.Named("posixmq").Sugar(), nil
}

// LevelEnabled reports whether log emits entries at level.
func LevelEnabled(log *zap.SugaredLogger, level zapcore.Level) bool {
	return log.Desugar().Core().Enabled(level)
}
