// Package logger wraps zap construction for the server and the client.
package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Logger holds the process-wide structured logger.
type Logger struct {
	Log *zap.Logger
}

// New returns a Logger that discards everything until Init is called.
func New() *Logger {
	return &Logger{Log: zap.NewNop()}
}

// Init replaces the logger with a JSON production logger at the given level.
func (l *Logger) Init(level string) error {
	return l.InitWithOutput(level, "stderr")
}

// InitWithOutput is Init writing to the given zap output paths, e.g. a log
// file for the interactive client where stderr belongs to the user.
func (l *Logger) InitWithOutput(level string, outputs ...string) error {
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(level))
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.OutputPaths = outputs
	zl, err := cfg.Build()
	if err != nil {
		return err
	}
	l.Log = zl
	return nil
}
