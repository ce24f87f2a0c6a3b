package obs

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// WithTrace returns log carrying the active span ids plus fields.
func WithTrace(ctx context.Context, log *zap.Logger, fields ...zap.Field) *zap.Logger {
	if log == nil {
		return nil
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}

// Fail records err on span and marks it failed with msg.
func Fail(span trace.Span, err error, msg string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}
