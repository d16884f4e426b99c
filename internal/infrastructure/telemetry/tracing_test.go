package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(attrs []attribute.KeyValue) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, a := range attrs {
		out[string(a.Key)] = a.Value.Emit()
	}
	return out
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupRecorder(t)

	ctx, span := telemetry.StartServiceSpan(context.Background(), "document", "create",
		attribute.String(telemetry.SpanAttrDocumentType, "invoice"))
	assert.NotEmpty(t, telemetry.TraceID(ctx))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "document.create", spans[0].Name())
	assert.Equal(t, "invoice", attrMap(spans[0].Attributes())[telemetry.SpanAttrDocumentType])
	assert.Equal(t, telemetry.TracerName, spans[0].InstrumentationScope().Name)
}

func TestSetAttributes(t *testing.T) {
	sr := setupRecorder(t)

	_, span := telemetry.StartSpan(context.Background(), "op")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDocumentNumber, "INV-0001",
		"count", 3,
		"paid", true,
		"event", billing.EventSend,
		42, "ignored",
		"dangling",
	)
	span.End()

	got := attrMap(sr.Ended()[0].Attributes())
	assert.Equal(t, "INV-0001", got[telemetry.SpanAttrDocumentNumber])
	assert.Equal(t, "3", got["count"])
	assert.Equal(t, "true", got["paid"])
	assert.Equal(t, "send", got["event"])
	assert.Len(t, got, 4)
}

func TestRecordError(t *testing.T) {
	sr := setupRecorder(t)

	_, span := telemetry.StartSpan(context.Background(), "op")
	telemetry.RecordError(span, errors.New("numbering failed"))
	telemetry.RecordError(span, nil)
	span.End()

	ended := sr.Ended()[0]
	assert.Equal(t, codes.Error, ended.Status().Code)
	assert.Equal(t, "numbering failed", ended.Status().Description)
	require.Len(t, ended.Events(), 1)
	assert.Equal(t, "exception", ended.Events()[0].Name)
}

func TestAddEvent(t *testing.T) {
	sr := setupRecorder(t)

	_, span := telemetry.StartSpan(context.Background(), "op")
	telemetry.AddEvent(span, "quotation_converted", telemetry.SpanAttrDocumentNumber, "INV-0007")
	span.End()

	events := sr.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "quotation_converted", events[0].Name)
	assert.Equal(t, "INV-0007", attrMap(events[0].Attributes)[telemetry.SpanAttrDocumentNumber])
}

func TestTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, telemetry.TraceID(context.Background()))
}

func TestNilSpanHelpers(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "k", "v")
		telemetry.RecordError(nil, errors.New("x"))
		telemetry.AddEvent(nil, "e")
	})
}
