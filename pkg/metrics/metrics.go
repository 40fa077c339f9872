package metrics

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/hpc-scale/prepare-scale/common/clusterconfig"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/hpc-scale/prepare-scale"

type PlanMetrics struct {
	PlansTotal  metric.Int64Counter
	QuorumNodes metric.Int64Gauge
	Nodes       metric.Int64Gauge
	Disks       metric.Int64Gauge
}

var (
	planMetrics     *PlanMetrics
	planMetricsLock sync.Mutex
)

func GetPlanMetrics() *PlanMetrics {
	planMetricsLock.Lock()
	defer planMetricsLock.Unlock()

	if planMetrics == nil {
		planMetrics = NewPlanMetrics(otel.Meter(meterName, metric.WithInstrumentationVersion(BuildVersion())))
	}

	return planMetrics
}

// BuildVersion is the module version recorded in the binary, or "devel".
func BuildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "devel"
	}
	return info.Main.Version
}

func NewPlanMetrics(meter metric.Meter) *PlanMetrics {
	plansTotal, _ := meter.Int64Counter("plans_total",
		metric.WithDescription("Planning runs by cluster type and result"))
	quorumNodes, _ := meter.Int64Gauge("plan_quorum_nodes",
		metric.WithDescription("Quorum nodes in the last plan"))
	nodes, _ := meter.Int64Gauge("plan_nodes",
		metric.WithDescription("Nodes in the last plan by node class"))
	disks, _ := meter.Int64Gauge("plan_disks",
		metric.WithDescription("NSD disks in the last plan by failure group"))

	return &PlanMetrics{
		PlansTotal:  plansTotal,
		QuorumNodes: quorumNodes,
		Nodes:       nodes,
		Disks:       disks,
	}
}

// RecordPlan records a successful run and the shape of its plan.
func (m *PlanMetrics) RecordPlan(ctx context.Context, plan *clusterconfig.TopologyPlan) {
	clusterType := attribute.String("cluster_type", plan.ClusterType)

	m.PlansTotal.Add(ctx, 1, metric.WithAttributes(clusterType, attribute.String("result", "success")))
	m.QuorumNodes.Record(ctx, int64(plan.Topology.QuorumNodes()), metric.WithAttributes(clusterType))

	classes := map[string]int64{}
	for _, node := range plan.Topology.Nodes {
		classes[node.Class]++
	}
	for class, count := range classes {
		m.Nodes.Record(ctx, count, metric.WithAttributes(clusterType, attribute.String("nodeclass", class)))
	}

	groups := map[int]int64{}
	for _, disk := range plan.Disks {
		groups[disk.FailureGroup]++
	}
	for group, count := range groups {
		m.Disks.Record(ctx, count, metric.WithAttributes(clusterType, attribute.Int("failure_group", group)))
	}
}

// RecordFailure counts a run that produced no plan.
func (m *PlanMetrics) RecordFailure(ctx context.Context, reason string) {
	m.PlansTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cluster_type", "unknown"),
		attribute.String("result", reason)))
}

// WriteTextfile dumps everything g gathers in the node exporter textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return errors.Wrapf(err, "failed to write metrics textfile %s", path)
	}
	return nil
}
