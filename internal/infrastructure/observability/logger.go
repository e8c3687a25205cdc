package observability

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// InitLogger points the global zerolog logger at stdout: console output
// in development, JSON with caller info otherwise. level overrides the
// environment's default level when it parses.
func InitLogger(serviceName, env, level string) {
	log.Logger = NewLogger(os.Stdout, serviceName, env)
	zerolog.SetGlobalLevel(parseLevel(env, level))
}

// NewLogger builds the logger InitLogger installs, writing to w
func NewLogger(w io.Writer, serviceName, env string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Str("service", serviceName).
			Logger()
	}
	return zerolog.New(w).
		With().
		Timestamp().
		Caller().
		Str("service", serviceName).
		Logger()
}

func parseLevel(env, level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if lvl, err := zerolog.ParseLevel(level); err == nil && level != "" {
		return lvl
	}
	if env == "development" {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// EnableOTelLogs mirrors every global log entry to the OpenTelemetry
// logs pipeline. Call after Setup.
func EnableOTelLogs(serviceName string) {
	log.Logger = log.Logger.Hook(NewOTelHook(serviceName))
}

// LoggerFromContext returns the global logger tagged with the trace and
// span of ctx, when there is one.
func LoggerFromContext(ctx context.Context) *zerolog.Logger {
	logger := log.Logger
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With().
			Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String()).
			Logger()
	}
	return &logger
}
