package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("clinic_id", "123"),
		attribute.String("action", "suspend"),
		attribute.String("reason", "invalid_status_transition"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("action"), attrs[0].Key)
	assert.Equal(t, attribute.Key("reason"), attrs[1].Key)
}

func TestRecordTransition(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(Config{ServiceName: "vetsub"}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordTransition(ctx, "create", "", "ACTIVE")
	m.RecordTransition(ctx, "create", "", "ACTIVE")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	var found bool
	for _, metric := range rm.ScopeMetrics[0].Metrics {
		if metric.Name != "vetsub_subscription_transitions_total" {
			continue
		}
		sum, ok := metric.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, sum.DataPoints, 1)
		assert.Equal(t, int64(2), sum.DataPoints[0].Value)
		from, _ := sum.DataPoints[0].Attributes.Value("from_status")
		assert.Equal(t, "NONE", from.AsString())
		found = true
	}
	assert.True(t, found)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.RecordTransition(context.Background(), "refund", "ACTIVE", "REFUNDED")
	m.RecordRejection(context.Background(), "refund", "invalid_status_transition")
	m.RecordAccountLimitDenied(context.Background(), "DOCTOR")
}
