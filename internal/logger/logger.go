package logger

import (
	"os"

	"festival-scoring/internal/config"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// New builds the root logger at the configured level. Unknown or empty
// levels fall back to info.
func New(cfg *config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(os.Stdout).
		With().
		Timestamp().
		Caller().
		Logger().
		Level(level)
}

var Module = fx.Provide(New)
