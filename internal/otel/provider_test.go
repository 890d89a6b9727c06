package otel

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(Config{Enabled: false})
	require.NoError(t, err)
	assert.False(t, p.Enabled())

	// no-op meter still hands out instruments
	c, err := p.Meter("test").Int64Counter("ticks")
	require.NoError(t, err)
	c.Add(context.Background(), 1)

	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledWithoutWriter(t *testing.T) {
	_, err := New(Config{Enabled: true, ServiceName: "stalker"})
	assert.ErrorContains(t, err, "no metrics writer")
}

func TestNew_ManualReader(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	p, err := New(Config{Enabled: true, ServiceName: "stalker", Reader: reader})
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	c, err := p.Meter("stalker/test").Int64Counter("stalker.ticks")
	require.NoError(t, err)
	c.Add(context.Background(), 3)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)

	name, ok := rm.Resource.Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "stalker", name.AsString())
}

func TestNew_StdoutWriter(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{Enabled: true, ServiceName: "stalker", Writer: &buf})
	require.NoError(t, err)

	c, err := p.Meter("stalker/test").Int64Counter("stalker.ticks")
	require.NoError(t, err)
	c.Add(context.Background(), 1)

	require.NoError(t, p.Flush(context.Background()))
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "stalker.ticks")
}
