package observability

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/zatekoja/noshowrisk/pkg/config"
)

// InitLogger configures the global zerolog logger. Logs go to stderr so
// command output on stdout stays machine-readable.
func InitLogger(serviceName, env string, cfg config.LoggingConfig) {
	log.Logger = NewLogger(os.Stderr, serviceName, env, cfg)
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
}

// NewLogger builds a service logger writing to out
func NewLogger(out io.Writer, serviceName, env string, cfg config.LoggingConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	format := cfg.Format
	if format == "" {
		format = "json"
		if env == "development" {
			format = "console"
		}
	}

	if format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Str("service", serviceName).
			Logger()
	}
	return zerolog.New(out).
		With().
		Timestamp().
		Caller().
		Str("service", serviceName).
		Logger()
}

func parseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return parsed
}

// LoggerFromContext returns the global logger enriched with the active
// trace and span ids
func LoggerFromContext(ctx context.Context) *zerolog.Logger {
	logger := log.With().Logger()

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		logger = logger.With().
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String()).
			Logger()
	}

	return &logger
}
