package logging

import (
	"os"

	"github.com/hashicorp/go-hclog"
)

// Logger is a minimal structured logger interface.
// hclog.Logger satisfies it directly.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// New returns an hclog backed Logger writing to stderr at the given level
// ("trace", "debug", "info", "warn", "error"). Unknown levels fall back to info.
func New(name, level string) Logger {
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  lvl,
		Output: os.Stderr,
	})
}

// Default returns the process wide hclog logger.
func Default() Logger { return hclog.Default() }

// NewNull returns a Logger that discards everything.
func NewNull() Logger { return hclog.NewNullLogger() }

// Named derives a sub-logger when l supports it, otherwise returns l unchanged.
func Named(l Logger, name string) Logger {
	if hl, ok := l.(hclog.Logger); ok {
		return hl.Named(name)
	}
	return l
}
