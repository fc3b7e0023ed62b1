package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const service = "workoutboard"

// Init configures the global zerolog logger used throughout the service.
// Development gets console output; everything else gets JSON lines.
func Init(env, level string) {
	var w io.Writer
	if env == "" || env == "development" || env == "dev" {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	} else {
		w = os.Stderr
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	log.Logger = zerolog.New(w).With().
		Timestamp().
		Str("service", service).
		Logger()
}

// WithRequestID returns a logger tagged with the request id.
func WithRequestID(requestID string) zerolog.Logger {
	return log.With().Str("request_id", requestID).Logger()
}
