package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hpc-scale/prepare-scale/common/clusterconfig"
	"github.com/hpc-scale/prepare-scale/common/inventory"
	"github.com/hpc-scale/prepare-scale/common/nodeclass"
	"github.com/hpc-scale/prepare-scale/common/planerrors"
	"github.com/hpc-scale/prepare-scale/pkg/ansible"
	"github.com/hpc-scale/prepare-scale/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func testConfig(t *testing.T) *config {
	dir := t.TempDir()

	data, err := os.ReadFile("testdata/inventory.json")
	require.NoError(t, err)
	invPath := filepath.Join(dir, "inventory.json")
	require.NoError(t, os.WriteFile(invPath, data, 0o644))

	sizing := map[string]clusterconfig.RawSizing{}
	for _, class := range nodeclass.All {
		sizing[class] = clusterconfig.RawSizing{Memory: "32", VCPUs: "8", Bandwidth: "16000"}
	}

	return &config{
		tfInvPath:               invPath,
		installInfraPath:        filepath.Join(dir, "infra"),
		instancePrivateKey:      "/root/.ssh/id_rsa",
		maxDataReplicas:         3,
		defaultMetadataReplicas: 2,
		maxMetadataReplicas:     3,
		guiUsername:             "admin",
		guiPassword:             "secret",
		encryptionServers:       "[]",
		encryptionType:          "null",
		sizing:                  sizing,
		metricsTextfile:         filepath.Join(dir, "prepare_scale.prom"),
	}
}

func newTestPlanner(t *testing.T, cfg *config) *planner {
	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	require.NoError(t, err)

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	p, err := newPlanner(context.Background(), plannerOptions{
		Logger:   zaptest.NewLogger(t),
		Config:   cfg,
		Settings: cfg.settings(),
		Metrics:  metrics.NewPlanMetrics(provider.Meter("test")),
		Gatherer: reg,
	})
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestPlannerRun(t *testing.T) {
	cfg := testConfig(t)
	p := newTestPlanner(t, cfg)
	require.Nil(t, p.LatestPlan())

	rec, err := inventory.Load(cfg.tfInvPath)
	require.NoError(t, err)

	plan, err := p.Run(context.Background(), rec)
	require.NoError(t, err)
	require.Equal(t, "storage", plan.ClusterType)
	require.Same(t, plan, p.LatestPlan())

	infra := filepath.Join(cfg.installInfraPath, ansible.InstallInfraDir)
	require.FileExists(t, filepath.Join(infra, "storage_inventory.ini"))
	require.FileExists(t, filepath.Join(infra, "group_vars", "storage_cluster_config.yaml"))
	require.FileExists(t, filepath.Join(infra, "storage_cloud_playbook.yaml"))
	require.FileExists(t, filepath.Join(filepath.Dir(cfg.tfInvPath), "storage_cluster_gui_details.json"))

	textfile, err := os.ReadFile(cfg.metricsTextfile)
	require.NoError(t, err)
	require.Contains(t, string(textfile), "plan_quorum_nodes")
}

func TestPlannerRunFailureKeepsLastPlan(t *testing.T) {
	cfg := testConfig(t)
	p := newTestPlanner(t, cfg)

	rec, err := inventory.Load(cfg.tfInvPath)
	require.NoError(t, err)

	first, err := p.Run(context.Background(), rec)
	require.NoError(t, err)

	empty := *rec
	empty.StorageInstanceNames = []string{}
	empty.ComputeInstanceNames = []string{}

	_, err = p.Run(context.Background(), &empty)
	require.ErrorIs(t, err, planerrors.ErrInconsistentTopology)
	require.Same(t, first, p.LatestPlan())

	textfile, err := os.ReadFile(cfg.metricsTextfile)
	require.NoError(t, err)
	require.Contains(t, string(textfile), `result="inconsistent_topology"`)
}

func TestPlannerReconfigure(t *testing.T) {
	cfg := testConfig(t)
	p := newTestPlanner(t, cfg)

	plan, err := p.Reconfigure(context.Background(), cfg.settings(), cfg.writerOptions(zap.NewNop()))
	require.NoError(t, err)
	require.Nil(t, plan)

	rec, err := inventory.Load(cfg.tfInvPath)
	require.NoError(t, err)
	first, err := p.Run(context.Background(), rec)
	require.NoError(t, err)

	cfg.usingPackerImage = true
	cfg.guiPassword = "rotated"
	second, err := p.Reconfigure(context.Background(), cfg.settings(), cfg.writerOptions(zap.NewNop()))
	require.NoError(t, err)
	require.NotEqual(t, first.RunID, second.RunID)
	require.Equal(t, "rotated", second.ClusterVars.GUIAdminPassword)
	require.Same(t, second, p.LatestPlan())
}

type failingSink struct{}

func (failingSink) Publish(ctx context.Context, plan *clusterconfig.TopologyPlan) error {
	return errors.New("etcd unavailable")
}

func (failingSink) Cleanup(ctx context.Context, clusterType string) error {
	return nil
}

func TestPlannerSinkFailureKeepsWrittenFiles(t *testing.T) {
	cfg := testConfig(t)
	p, err := newPlanner(context.Background(), plannerOptions{
		Logger:   zaptest.NewLogger(t),
		Config:   cfg,
		Settings: cfg.settings(),
		Sink:     failingSink{},
		Metrics:  metrics.NewPlanMetrics(noop.NewMeterProvider().Meter("test")),
		Gatherer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	rec, err := inventory.Load(cfg.tfInvPath)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), rec)
	require.ErrorContains(t, err, "etcd unavailable")
	require.ErrorContains(t, err, "ansible outputs written")
	require.Nil(t, p.LatestPlan())

	infra := filepath.Join(cfg.installInfraPath, ansible.InstallInfraDir)
	require.FileExists(t, filepath.Join(infra, "storage_inventory.ini"))
}

func TestFailureReason(t *testing.T) {
	require.Equal(t, "missing_input_field",
		failureReason(&planerrors.MissingFieldError{Field: "gui-username"}))
	require.Equal(t, "inconsistent_topology",
		failureReason(planerrors.NewTopologyError("storage", "bad")))
	require.Equal(t, "error", failureReason(os.ErrNotExist))
}
