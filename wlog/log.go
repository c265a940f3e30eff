// Package wlog provides the package-level logger used throughout wampc.
package wlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

func init() {
	Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// SetOutput sets the output destination for the global logger.
func SetOutput(w io.Writer) {
	Logger = Logger.Output(w)
}

// SetLevel sets the minimum level for the global logger.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// EnableConsoleOutput configures the logger to use a human-friendly console format.
func EnableConsoleOutput() {
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	Logger = Logger.Output(consoleWriter)
}

// Debug logs a message at debug level.
func Debug() *zerolog.Event { return Logger.Debug() }

// Info logs a message at info level.
func Info() *zerolog.Event { return Logger.Info() }

// Warn logs a message at warn level.
func Warn() *zerolog.Event { return Logger.Warn() }

// Error logs a message at error level.
func Error() *zerolog.Event { return Logger.Error() }
