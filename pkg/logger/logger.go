// Package logger configures the process-wide zerolog logger and derives
// request-scoped loggers tagged with trace identifiers, so API requests and
// queue messages can be correlated with their traces.
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Setup configures the global logger. Local dev gets a pretty console writer
// at debug level; everywhere else output is JSON at info with Unix timestamps.
func Setup(isLocalDev bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if isLocalDev {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// WithTraceFields returns a context carrying a logger tagged with the active
// span's trace and span ids. Without a recording span the context comes back
// unchanged and log.Ctx falls through to the global logger.
func WithTraceFields(ctx context.Context) context.Context {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return ctx
	}

	sCtx := span.SpanContext()
	if !sCtx.HasTraceID() {
		return ctx
	}

	l := log.With().
		Str("trace_id", sCtx.TraceID().String()).
		Str("span_id", sCtx.SpanID().String()).
		Logger()
	return l.WithContext(ctx)
}
