package otelhelper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	recorder := tracetest.NewSpanRecorder()

	return recorder, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
}

func attr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}

	return attribute.Value{}, false
}

func TestSpans(t *testing.T) {
	recorder, provider := newRecorder()
	tracer := provider.Tracer("test")

	_, completed := StartSpan(context.Background(), tracer, "workflow.execute",
		attribute.String(WorkflowNameKey, "payment_process"))
	SetRunStatus(completed, "requires_confirmation")
	completed.End()

	_, failed := StartSpan(context.Background(), tracer, "workflow.execute")
	SetSystemFault(failed, errors.New("commit: connection reset"))
	SetRunStatus(failed, "failed")
	failed.End()

	_, untouched := StartSpan(context.Background(), tracer, "workflow.step")
	SetError(untouched, nil)
	untouched.End()

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	status, ok := attr(spans[0], StatusKey)
	require.True(t, ok)
	assert.Equal(t, "requires_confirmation", status.AsString())

	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "commit: connection reset", spans[1].Status().Description)
	require.Len(t, spans[1].Events(), 1)
	assert.Contains(t, spans[1].Events()[0].Attributes, attribute.String(ErrorKindKey, "system"))

	assert.Equal(t, codes.Unset, spans[2].Status().Code)
	assert.Empty(t, spans[2].Events())
}

func TestNoopTracer(t *testing.T) {
	_, span := StartSpan(context.Background(), NoopTracer("hesab/test"), "noop")
	defer span.End()

	assert.False(t, span.SpanContext().IsSampled())
}
