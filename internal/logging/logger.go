package logging

import (
	"fmt"

	"github.com/mikey/deadline-triage/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every record written by the daemon logger
const ServiceName = "deadline-triage"

// InitLogger initializes the daemon logger from the logging.* settings
func InitLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.GetString("logging.level"))
	if err != nil {
		return nil, fmt.Errorf("invalid logging.level: %w", err)
	}

	logConfig := newConfig(cfg.GetString("logging.format") == "json", level)
	if outputs := cfg.GetStringSlice("logging.output"); len(outputs) > 0 {
		logConfig.OutputPaths = outputs
	}
	logConfig.InitialFields = map[string]interface{}{"service": ServiceName}

	logger, err := logConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger, nil
}

// InitConsoleLogger initializes a console-friendly logger for the CLI
func InitConsoleLogger(verbose bool, jsonFormat bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	logger, err := newConfig(jsonFormat, level).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger, nil
}

func newConfig(jsonFormat bool, level zapcore.Level) zap.Config {
	var logConfig zap.Config
	if jsonFormat {
		logConfig = zap.NewProductionConfig()
		logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		logConfig = zap.NewDevelopmentConfig()
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	logConfig.Level = zap.NewAtomicLevelAt(level)
	return logConfig
}
