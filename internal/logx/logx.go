// Package logx is a thin structured-logging wrapper around zerolog.
//
// It initializes the global logger once, configures the output format
// (colored console in development, JSON in production) and exposes
// unified helper functions for Info/Warn/Error/Fatal. Logger returns the
// underlying zerolog logger for call sites that need its API directly,
// such as the connection handler's per-connection context logger.
package logx

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger. Development mode uses a
// colored console writer at debug level; production uses JSON at info
// level.
func Init(development bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if development {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	log.Logger = logger
}

func checkFields(fields []any) []any {
	if len(fields)%2 != 0 {
		Logger().Warn().Int("fields_count", len(fields)).Msg("logx call received odd number of fields; fields ignored")
		return nil
	}
	return fields
}

// Logger returns the global zerolog logger.
func Logger() *zerolog.Logger {
	return &log.Logger
}

// Info logs msg at info level with optional key/value fields.
func Info(msg string, fields ...any) {
	Logger().Info().Fields(checkFields(fields)).Msg(msg)
}

// Warn logs msg at warn level with optional key/value fields.
func Warn(msg string, fields ...any) {
	Logger().Warn().Fields(checkFields(fields)).Msg(msg)
}

// Error logs err and msg at error level with optional key/value fields.
func Error(err error, msg string, fields ...any) {
	Logger().Error().Err(err).Fields(checkFields(fields)).Msg(msg)
}

// Fatal logs err and msg at fatal level and terminates the process.
func Fatal(err error, msg string, fields ...any) {
	Logger().Fatal().Err(err).Fields(checkFields(fields)).Msg(msg)
}
