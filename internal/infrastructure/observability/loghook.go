package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
)

// OTelHook forwards zerolog entries to an OpenTelemetry logger. Only the
// level, message and context travel; structured fields stay in the
// zerolog output.
type OTelHook struct {
	logger otellog.Logger
}

// NewOTelHook returns a hook emitting through the global logger provider
func NewOTelHook(name string) OTelHook {
	return OTelHook{logger: global.GetLoggerProvider().Logger(name)}
}

// NewOTelHookWithProvider returns a hook emitting through provider
func NewOTelHookWithProvider(provider otellog.LoggerProvider, name string) OTelHook {
	return OTelHook{logger: provider.Logger(name)}
}

// Run implements zerolog.Hook
func (h OTelHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if level == zerolog.NoLevel || level == zerolog.Disabled {
		return
	}

	ctx := e.GetCtx()
	if ctx == nil {
		ctx = context.Background()
	}

	var record otellog.Record
	record.SetTimestamp(time.Now())
	record.SetSeverity(severity(level))
	record.SetSeverityText(level.String())
	record.SetBody(otellog.StringValue(msg))

	h.logger.Emit(ctx, record)
}

func severity(level zerolog.Level) otellog.Severity {
	switch level {
	case zerolog.TraceLevel:
		return otellog.SeverityTrace
	case zerolog.DebugLevel:
		return otellog.SeverityDebug
	case zerolog.InfoLevel:
		return otellog.SeverityInfo
	case zerolog.WarnLevel:
		return otellog.SeverityWarn
	case zerolog.ErrorLevel:
		return otellog.SeverityError
	case zerolog.FatalLevel:
		return otellog.SeverityFatal
	case zerolog.PanicLevel:
		return otellog.SeverityFatal4
	default:
		return otellog.SeverityUndefined
	}
}
