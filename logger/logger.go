// Package logger provides the structured logger used by every collector
// component. Components receive a Provider and resolve their logger from the
// request context, so tests can substitute a recording logger without global
// state.
package logger

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKeyType struct{}

// CtxLoggerKey is how run-scoped loggers are stored and retrieved.
var CtxLoggerKey ctxKeyType

// Provider resolves the logger bound to the given context.
type Provider func(ctx context.Context) ILogger

// Logger wraps a zap sugared logger behind the ILogger interface.
type Logger struct {
	mu  sync.Mutex
	sl  *zap.SugaredLogger
	lvl zap.AtomicLevel
}

// NewLogger builds a production JSON logger writing to stderr.
// Level is read from LOG_LEVEL (debug|info|warn|error), defaulting to info.
func NewLogger() *Logger {
	lvl := zap.NewAtomicLevelAt(parseLevel(os.Getenv("LOG_LEVEL")))

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		lvl,
	)

	return &Logger{
		sl:  zap.New(core).Sugar(),
		lvl: lvl,
	}
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewContext returns a context carrying the given logger.
func NewContext(ctx context.Context, l ILogger) context.Context {
	return context.WithValue(ctx, CtxLoggerKey, l)
}

// FromContext returns the logger stored in context.
// If there isn't a logger stored, returns a new default logger.
func FromContext(ctx context.Context) ILogger {
	if l, ok := ctx.Value(CtxLoggerKey).(ILogger); ok {
		return l
	}

	return NewLogger()
}

func (l *Logger) SetLabel(key, value string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sl = l.sl.With(key, value)
}

func (l *Logger) SetLabels(labels map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, v := range labels {
		l.sl = l.sl.With(k, v)
	}
}

func (l *Logger) Debug(v ...interface{})   { l.sl.Debug(v...) }
func (l *Logger) Info(v ...interface{})    { l.sl.Info(v...) }
func (l *Logger) Warning(v ...interface{}) { l.sl.Warn(v...) }
func (l *Logger) Error(v ...interface{})   { l.sl.Error(v...) }

func (l *Logger) Debugf(format string, v ...interface{})   { l.sl.Debugf(format, v...) }
func (l *Logger) Infof(format string, v ...interface{})    { l.sl.Infof(format, v...) }
func (l *Logger) Warningf(format string, v ...interface{}) { l.sl.Warnf(format, v...) }
func (l *Logger) Errorf(format string, v ...interface{})   { l.sl.Errorf(format, v...) }

func (l *Logger) Sync() error { return l.sl.Sync() }
