package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/sells-group/plantcare/internal/config"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	p, err := Setup(context.Background(), config.TracingConfig{ServiceName: "plantcare"}, "test")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestStartSpan_RecordsError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx, parent := StartSpan(context.Background(), "careplan.generate", attribute.String("plant_id", "p1"))
	_, child := StartSpan(ctx, "careplan.aggregate")
	child.End(errors.New("boom"))
	parent.SetAttributes(attribute.Int("version", 3))
	parent.End(nil)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "careplan.aggregate", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
}

func TestSpan_NilSafe(t *testing.T) {
	var s *Span
	s.End(errors.New("ignored"))
	s.SetAttributes(attribute.Bool("ok", true))
}
