package service

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer resolves against the global provider, which is a no-op unless
// telemetry.Setup registered an exporter.
var tracer = otel.Tracer("arcadeswap-api/internal/service")

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
