// Package logger holds the process-wide zerolog logger. Debug level writes
// a human readable console format, every other level writes JSON lines.
package logger

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var current atomic.Pointer[zerolog.Logger]

func init() {
	Init("info")
}

// ParseLevel maps a config value to a zerolog level. Unknown or empty
// values fall back to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Init configures the global logger for level, writing to stdout.
func Init(level string) {
	lvl := ParseLevel(level)

	var out io.Writer = os.Stdout
	if lvl <= zerolog.DebugLevel {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}
	SetOutput(out, lvl)
}

// SetOutput replaces the destination and level of the global logger.
func SetOutput(w io.Writer, lvl zerolog.Level) {
	l := zerolog.New(w).Level(lvl).With().Timestamp().Caller().Logger()
	current.Store(&l)
}

func get() *zerolog.Logger { return current.Load() }

// Named returns a child logger tagged with component.
func Named(component string) zerolog.Logger {
	return get().With().Str("component", component).Logger()
}

func Debug() *zerolog.Event { return get().Debug() }
func Info() *zerolog.Event  { return get().Info() }
func Warn() *zerolog.Event  { return get().Warn() }
func Error() *zerolog.Event { return get().Error() }

func Infof(format string, v ...interface{}) { get().Info().Msgf(format, v...) }
func Warnf(format string, v ...interface{}) { get().Warn().Msgf(format, v...) }

// Fatalf logs at fatal level and exits the process.
func Fatalf(format string, v ...interface{}) { get().Fatal().Msgf(format, v...) }
