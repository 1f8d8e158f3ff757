package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/bilal/switchify-netai/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Init(lcfg config.LoggingConfig) {
	InitWithWriter(lcfg, os.Stderr)
}

// InitWithWriter configures the global logger to write to out.
func InitWithWriter(lcfg config.LoggingConfig, out io.Writer) {
	zerolog.SetGlobalLevel(parseLevel(lcfg.Level))

	if strings.ToLower(lcfg.Format) == "console" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
		return
	}
	// default json
	log.Logger = zerolog.New(out).With().Timestamp().Str("service", "switchify-netai").Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
