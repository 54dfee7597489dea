package logger

import (
	"testing"

	"festival-scoring/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewAppliesConfiguredLevel(t *testing.T) {
	logger := New(&config.Config{LogLevel: "warn"})
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger = New(&config.Config{LogLevel: "debug"})
	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
}

func TestNewUnknownLevelFallsBackToInfo(t *testing.T) {
	logger := New(&config.Config{LogLevel: "chatty"})
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())

	logger = New(&config.Config{})
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}
