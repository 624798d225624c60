package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_RecordsOnRegisteredProvider(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	ctx, span := StartSpan(context.Background(), "certificate.issue", attribute.String("applicationId", "a-1"))
	assert.NotNil(t, ctx)
	span.End()

	ended := rec.Ended()
	if assert.Len(t, ended, 1) {
		assert.Equal(t, "certificate.issue", ended[0].Name())
		assert.Contains(t, ended[0].Attributes(), attribute.String("applicationId", "a-1"))
	}
}

func TestObservability_RecordersTolerateMissingInstruments(t *testing.T) {
	o := &Observability{}
	o.RecordJobProcessed(context.Background(), "ok")
	o.RecordVerdict(context.Background(), false, "REVOKED")
	o.Shutdown()
}
