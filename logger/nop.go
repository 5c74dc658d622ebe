package logger

import "go.uber.org/zap"

// NewNop returns a logger that discards everything. Test use only.
func NewNop() *Logger {
	return &Logger{
		sl:  zap.NewNop().Sugar(),
		lvl: zap.NewAtomicLevel(),
	}
}
