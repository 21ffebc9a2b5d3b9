// Package logging builds the process zap logger and bridges pion's logging into it.
package logging

import (
	"fmt"

	"github.com/pion/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/config"
)

// New builds a logger from config and installs it as the zap global,
// so components using zap.L().Named(...) pick it up.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zc zap.Config
	if cfg.JSON {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// PionLoggerFactory routes pion's scoped loggers into zap.
type PionLoggerFactory struct {
	logger *zap.Logger
}

func NewPionLoggerFactory(logger *zap.Logger) *PionLoggerFactory {
	if logger == nil {
		logger = zap.L()
	}
	return &PionLoggerFactory{logger: logger.Named("pion")}
}

func (f *PionLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{sugar: f.logger.Named(scope).Sugar()}
}

type pionLogger struct {
	sugar *zap.SugaredLogger
}

// pion traces every packet; trace is folded into debug
func (l *pionLogger) Trace(msg string)                          { l.sugar.Debug(msg) }
func (l *pionLogger) Tracef(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *pionLogger) Debug(msg string)                          { l.sugar.Debug(msg) }
func (l *pionLogger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *pionLogger) Info(msg string)                           { l.sugar.Info(msg) }
func (l *pionLogger) Infof(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *pionLogger) Warn(msg string)                           { l.sugar.Warn(msg) }
func (l *pionLogger) Warnf(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *pionLogger) Error(msg string)                          { l.sugar.Error(msg) }
func (l *pionLogger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }
