package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls how the process-wide base logger is built.
type Config struct {
	Level   string
	Pretty  bool
	App     string
	Env     string
	Version string

	// FilePath optionally mirrors log output to a file
	FilePath string
}

// Logger provides component-scoped logging on top of a shared zap logger.
//
// Every entry carries the component name and the process session ID so that
// log lines from one server instance can be correlated.
type Logger struct {
	component string
	sessionID string
	base      *zap.Logger
	sugar     *zap.SugaredLogger
}

var (
	// Global session ID for the current process
	sessionID     string
	sessionIDOnce sync.Once
)

// getSessionID returns or creates the session ID for this process
func getSessionID() string {
	sessionIDOnce.Do(func() {
		sessionID = uuid.New().String()
	})
	return sessionID
}

// NewBase builds the process-wide zap logger.
//
// Pretty selects the human-readable development encoder; otherwise JSON
// production output is used. Unknown levels fall back to info.
func NewBase(c Config) (*zap.Logger, error) {
	var cfg zap.Config
	if c.Pretty {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	level := new(zapcore.Level)
	if err := level.Set(c.Level); err != nil {
		*level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(*level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if c.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(c.FilePath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		cfg.OutputPaths = append(cfg.OutputPaths, c.FilePath)
	}

	l, err := cfg.Build(
		zap.Fields(
			zap.String("service", c.App),
			zap.String("env", c.Env),
			zap.String("version", c.Version),
			zap.String("session_id", getSessionID()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l, nil
}

// NewLogger creates a logger for a specific component.
// A nil base produces a logger that discards everything.
func NewLogger(base *zap.Logger, component string) *Logger {
	if base == nil {
		base = zap.NewNop()
	}
	z := base.With(zap.String("component", component))
	return &Logger{
		component: component,
		sessionID: getSessionID(),
		base:      z,
		sugar:     z.Sugar(),
	}
}

// Nop returns a logger that discards all output.
func Nop() *Logger {
	return NewLogger(nil, "nop")
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.sugar.Debugf(format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

// With returns a child logger carrying additional structured fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	z := l.base.With(fields...)
	return &Logger{
		component: l.component,
		sessionID: l.sessionID,
		base:      z,
		sugar:     z.Sugar(),
	}
}

// Zap exposes the underlying structured logger.
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

// Component returns the component name
func (l *Logger) Component() string {
	return l.component
}

// SessionID returns the current session ID
func (l *Logger) SessionID() string {
	return l.sessionID
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}

// GetSessionID returns the current global session ID
func GetSessionID() string {
	return getSessionID()
}
