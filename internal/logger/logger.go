package logger

import (
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"
)

// Level controls which messages are emitted by the package-level helpers.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var minLevel atomic.Int32

func init() {
	SetLevelFromString(os.Getenv("PLAYRA_LOG_LEVEL"))
}

// SetLevel sets the minimum level for the package-level helpers.
func SetLevel(l Level) {
	minLevel.Store(int32(l))
}

// SetLevelFromString parses a level name ("debug", "info", "warn", "error").
// Unknown or empty input selects info.
func SetLevelFromString(s string) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		SetLevel(LevelDebug)
	case "warn", "warning":
		SetLevel(LevelWarn)
	case "error":
		SetLevel(LevelError)
	default:
		SetLevel(LevelInfo)
	}
}

// New returns a named hclog logger for components that want structured
// key/value logging. The level follows the package-level setting.
func New(name string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  hclogLevel(),
		Output: os.Stderr,
	})
}

func hclogLevel() hclog.Level {
	switch Level(minLevel.Load()) {
	case LevelDebug:
		return hclog.Debug
	case LevelWarn:
		return hclog.Warn
	case LevelError:
		return hclog.Error
	default:
		return hclog.Info
	}
}

// Info logs informational messages
func Info(format string, args ...interface{}) {
	if Level(minLevel.Load()) <= LevelInfo {
		log.Printf("INFO: "+format, args...)
	}
}

// Warn logs warning messages
func Warn(format string, args ...interface{}) {
	if Level(minLevel.Load()) <= LevelWarn {
		log.Printf("WARN: "+format, args...)
	}
}

// Error logs error messages
func Error(format string, args ...interface{}) {
	if Level(minLevel.Load()) <= LevelError {
		log.Printf("ERROR: "+format, args...)
	}
}

// Debug logs debug messages
func Debug(format string, args ...interface{}) {
	if Level(minLevel.Load()) <= LevelDebug {
		log.Printf("DEBUG: "+format, args...)
	}
}
