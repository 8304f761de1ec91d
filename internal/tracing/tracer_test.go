package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDashboardTracer_RepoSpan(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := NewSyncTracerProvider(exp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	dt := NewDashboardTracer("dashboard-core-test")
	_, span := dt.StartRepoSpan(context.Background(), "save", "d1")
	dt.RecordRepoMetrics(span, 3*time.Millisecond, 2, false)
	dt.RecordError(span, errors.New("boom"))
	span.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "dashboard_repo.save", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, attribute.String("dashboard.id", "d1"))
	assert.Contains(t, spans[0].Attributes, attribute.Int("repo.record_count", 2))
}

func TestDashboardTracer_NoIDAttributeWhenEmpty(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := NewSyncTracerProvider(exp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := NewDashboardTracer("t").StartRepoSpan(context.Background(), "list", "")
	span.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	for _, kv := range spans[0].Attributes {
		assert.NotEqual(t, attribute.Key("dashboard.id"), kv.Key)
	}
}
