package httpapi

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var apiTracer = otel.Tracer("odds-grading/internal/interfaces/httpapi")
var noopSpan = trace.SpanFromContext(context.Background())

// startSpan opens a child span for handlers only. Helpers and requests on
// untraced routes such as /healthz get a no-op span.
func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	parent := trace.SpanFromContext(ctx)
	if !parent.SpanContext().IsValid() || !shouldCreateHTTPAPISpan(name) {
		return ctx, noopSpan
	}
	return apiTracer.Start(ctx, name)
}

func shouldCreateHTTPAPISpan(name string) bool {
	return strings.HasPrefix(name, "httpapi.Handler.")
}

func jobSpanAttributes(run jobRun, dispatchID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("job.name", run.name),
		attribute.String("job.sport", run.sport),
		attribute.String("job.dispatch_id", dispatchID),
	}
}
