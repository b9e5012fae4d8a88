package testlog

import (
	"testing"

	"github.com/danmuck/pixelctl/internal/logging"
	"github.com/rs/zerolog/log"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Info().Str("test", t.Name()).Msg("start")
}

// Logf records a checkpoint line for the running test.
func Logf(t *testing.T, format string, args ...any) {
	t.Helper()
	log.Debug().Str("test", t.Name()).Msgf(format, args...)
}
