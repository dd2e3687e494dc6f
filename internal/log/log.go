// Package log wraps zap with the small call-site surface the rest of
// this module uses: level-prefixed, printf-style logging without every
// caller having to carry a *zap.Logger around.
package log

import (
	"fmt"

	"go.uber.org/zap"
)

var logger = mustBuild()

func mustBuild() *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = "" // timestamps are added by the syslog/journal layer in production
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// logging construction failing means the process environment is
		// broken beyond repair; fall back to a no-op logger over panicking
		// at import time.
		l = zap.NewNop()
	}
	return l.Sugar()
}

// SetLevel adjusts the minimum level the package logger emits. Valid
// values are "debug", "info", "error".
func SetLevel(level string) {
	var zl zap.AtomicLevel
	switch level {
	case "debug":
		zl = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "error":
		zl = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zl
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = ""
	if l, err := cfg.Build(zap.AddCallerSkip(1)); err == nil {
		logger = l.Sugar()
	}
}

func Debug(args ...interface{})            { logger.Debug(args...) }
func Debugf(format string, args ...interface{}) { logger.Debugf(format, args...) }
func Info(args ...interface{})             { logger.Info(args...) }
func Infof(format string, args ...interface{})  { logger.Infof(format, args...) }
func Error(args ...interface{})            { logger.Error(args...) }
func Errorf(format string, args ...interface{}) { logger.Errorf(format, args...) }
func Fatal(args ...interface{})            { logger.Fatal(args...) }
func Fatalf(format string, args ...interface{}) { logger.Fatalf(format, args...) }

// Sprint mirrors fmt.Sprint for callers building a message before
// deciding whether it's worth logging at all (e.g. inside a hot loop
// gated by a level check).
func Sprint(args ...interface{}) string { return fmt.Sprint(args...) }
