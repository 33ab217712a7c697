// Package logging contains zap logging helpers shared across the platform.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Component returns the well-known "component" zap field.
func Component(name string) zap.Field {
	return zap.String("component", name)
}

// Build constructs a logger for the given environment. Production builds
// emit JSON to stderr at info level; development builds emit
// console-formatted, colorized output at debug level.
func Build(production bool) (*zap.Logger, error) {
	if production {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		return cfg.Build()
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	return cfg.Build()
}
