package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger создаёт zerolog для сервиса. В dev включается debug.
func NewLogger(appEnv, service string) zerolog.Logger {
	level := zerolog.InfoLevel
	switch appEnv {
	case "dev":
		level = zerolog.DebugLevel
	case "test":
		level = zerolog.Disabled
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(os.Stdout).With().Timestamp().Str("service", service).Logger().Level(level)
}
