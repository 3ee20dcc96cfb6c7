package main

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ckan-cloud/ckan-cloud-operator/cmd"
	"github.com/ckan-cloud/ckan-cloud-operator/config"
)

func initLogger(logLevel string) *zap.Logger {
	var level zapcore.Level

	switch strings.ToLower(logLevel) {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel // Default level
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}

	logger.Debug("Logger initialized", zap.String("level", level.String()))

	return logger
}

func main() {
	// .env is read first so it can set LOG_LEVEL
	conf, loaded := config.Load()
	logger := initLogger(conf.LogLevel)
	defer logger.Sync()

	if !loaded {
		logger.Debug("No .env file found, using environment variables")
	}

	if err := cmd.Execute(logger, conf); err != nil {
		logger.Error("Command failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}
