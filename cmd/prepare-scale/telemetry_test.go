package main

import (
	"context"
	"testing"

	"github.com/hpc-scale/prepare-scale/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap/zaptest"
)

func gatherFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}

	t.Fatalf("metric family %s not found", name)
	return nil
}

func labelNames(m *dto.Metric) map[string]string {
	labels := map[string]string{}
	for _, label := range m.GetLabel() {
		labels[label.GetName()] = label.GetValue()
	}
	return labels
}

func newTestTelemetry(t *testing.T) (*telemetry, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	tel, err := initTelemetry(context.Background(), telemetryOptions{
		Logger:           zaptest.NewLogger(t),
		EnableTraces:     true,
		EnableMetrics:    true,
		InventoryPath:    "/opt/infra/inventory.json",
		InstallInfraPath: "/opt/infra",
		Registerer:       reg,
	})
	require.NoError(t, err)
	t.Cleanup(func() { tel.Shutdown(context.Background()) })
	return tel, reg
}

func TestTelemetryWithoutEndpoint(t *testing.T) {
	tel, _ := newTestTelemetry(t)

	require.NotNil(t, tel.meterProvider)
	require.Nil(t, tel.tracerProvider)
}

func TestTelemetryPlanMetricLabels(t *testing.T) {
	tel, reg := newTestTelemetry(t)
	m := metrics.NewPlanMetrics(tel.meterProvider.Meter("test"))

	m.Nodes.Record(context.Background(), 3, metric.WithAttributes(
		attribute.String("cluster_type", "compute"),
		attribute.String("nodeclass", "computenodegrp"),
		attribute.String("address", "10.241.1.4")))

	nodes := gatherFamily(t, reg, "plan_nodes")
	require.Len(t, nodes.GetMetric(), 1)

	labels := labelNames(nodes.GetMetric()[0])
	require.Equal(t, "compute", labels["cluster_type"])
	require.Equal(t, "computenodegrp", labels["nodeclass"])
	require.NotContains(t, labels, "address")
}

func TestTelemetryResource(t *testing.T) {
	tel, reg := newTestTelemetry(t)
	m := metrics.NewPlanMetrics(tel.meterProvider.Meter("test"))
	m.RecordFailure(context.Background(), "error")

	info := gatherFamily(t, reg, "target_info")
	labels := labelNames(info.GetMetric()[0])
	require.Equal(t, "prepare-scale", labels["service_name"])
	require.Equal(t, "/opt/infra/inventory.json", labels["prepare_scale_inventory_path"])
	require.Equal(t, "/opt/infra", labels["prepare_scale_install_infra_path"])
}
