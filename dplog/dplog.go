// Package dplog provides the process-wide structured logger. Grounded on
// cuemby-warren/pkg/log/log.go's zerolog.Logger wrapper, generalized from
// that package's four-level enum to the spec §6 verbosity set
// {TRACE, DEBUG, INFO, WARNING}, with WithShard replacing WithComponent
// since this module's natural unit of concurrency is the ORAM shard.
package dplog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Level is one of the four verbosity settings spec §6 names.
type Level string

const (
	TraceLevel   Level = "TRACE"
	DebugLevel   Level = "DEBUG"
	InfoLevel    Level = "INFO"
	WarningLevel Level = "WARNING"
)

// Logger is the global logger instance, configured once via Init.
var Logger zerolog.Logger

// Config configures the global logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init sets the global log level and output, once per process. Later
// calls override the prior configuration, since the underlying
// zerolog.SetGlobalLevel call is itself not additive.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case TraceLevel:
		level = zerolog.TraceLevel
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarningLevel:
		level = zerolog.WarnLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{Out: output}).With().Timestamp().Logger()
	}
}

// WithShard returns a child logger tagged with the owning ORAM shard
// index, for the per-shard worker goroutines spec §5 describes.
func WithShard(shard int) zerolog.Logger {
	return Logger.With().Int("shard", shard).Logger()
}

func Trace(msg string) { Logger.Trace().Msg(msg) }
func Info(msg string)  { Logger.Info().Msg(msg) }
func Debug(msg string) { Logger.Debug().Msg(msg) }
func Warn(msg string)  { Logger.Warn().Msg(msg) }
func Errorf(err error, msg string) {
	Logger.Error().Err(err).Msg(msg)
}
