package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("table", "indicator_values"),
		attribute.String("user_email", "a@x.io"),
		attribute.String("operation", "insert"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("table"), attrs[0].Key)
	assert.Equal(t, attribute.Key("operation"), attrs[1].Key)
}

func TestWorkflowTransitions(t *testing.T) {
	registry := prometheus.NewRegistry()
	wf := NewWorkflow(registry)

	wf.Transition("submit", "submitted")
	wf.Transition("submit", "submitted")
	wf.Transition("validate", "validated")

	assert.Equal(t, 2.0, testutil.ToFloat64(wf.transitions.WithLabelValues("submit", "submitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(wf.transitions.WithLabelValues("validate", "validated")))

	again := NewWorkflow(registry)
	again.Transition("submit", "submitted")
	assert.Equal(t, 3.0, testutil.ToFloat64(wf.transitions.WithLabelValues("submit", "submitted")))
}

func TestDisabledProviderIsNoop(t *testing.T) {
	provider, err := NewProvider(nil, Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, noop.MeterProvider{}, provider)

	m, err := New(Config{}, provider)
	require.NoError(t, err)
	m.RecordStoreRetry(context.Background(), "periods", "insert")
	m.RecordSetupRow(context.Background(), "site", "created")

	var nilMetrics *Metrics
	nilMetrics.RecordDenied(context.Background(), "validate", "role")
}
