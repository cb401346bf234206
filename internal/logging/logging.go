// Package logging builds the service's structured logger.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a configured zap.Logger. Encoding is JSON by default; set
// LOG_ENCODING=console for a human-readable development encoding. The level
// is taken from LOG_LEVEL (default "info").
func New() (*zap.Logger, error) {
	var zcfg zap.Config

	if strings.ToLower(os.Getenv("LOG_ENCODING")) == "console" {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	level := strings.ToLower(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	var zapLevel zapcore.Level
	if err := zapLevel.Set(level); err != nil {
		zapLevel = zapcore.InfoLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(zapLevel)

	return zcfg.Build()
}

// Must creates a logger and panics if initialization fails. Used at process
// startup, where a broken logger means nothing downstream can be observed.
func Must() *zap.Logger {
	logger, err := New()
	if err != nil {
		panic(err)
	}
	return logger
}
