package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const statusFailed = "failed"

// SetError marks span as failed. attrs are attached to the recorded
// exception event.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if err == nil {
		return
	}

	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

// SetSystemFault marks span as failed by the infrastructure rather than by
// a step.
func SetSystemFault(span trace.Span, err error) {
	SetError(span, err, attribute.String(ErrorKindKey, "system"))
}

// SetRunStatus tags a run span with its final status. Only failed runs are
// errors; a run paused for confirmation ended as intended.
func SetRunStatus(span trace.Span, status string) {
	span.SetAttributes(attribute.String(StatusKey, status))

	if status != statusFailed {
		span.SetStatus(codes.Ok, "")
	}
}
