package main

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hpc-scale/prepare-scale/common/clusterconfig"
	"github.com/hpc-scale/prepare-scale/common/inventory"
	"github.com/hpc-scale/prepare-scale/common/planerrors"
	"github.com/hpc-scale/prepare-scale/pkg/ansible"
	"github.com/hpc-scale/prepare-scale/pkg/artifacts"
	"github.com/hpc-scale/prepare-scale/pkg/metrics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type plannerOptions struct {
	Logger   *zap.Logger
	Config   *config
	Settings *clusterconfig.Settings

	// Sink replaces the sinks Config would build.
	Sink     artifacts.Sink
	Metrics  *metrics.PlanMetrics
	Gatherer prometheus.Gatherer
}

// planner runs one planning pass per inventory record and keeps the last
// successful plan around for the web api.
type planner struct {
	logger   *zap.Logger
	tracer   trace.Tracer
	metrics  *metrics.PlanMetrics
	gatherer prometheus.Gatherer
	textfile string
	sink     artifacts.Sink
	etcd     *clientv3.Client

	lock       sync.Mutex
	settings   *clusterconfig.Settings
	writer     *ansible.Writer
	lastRecord *inventory.Record

	latest atomic.Pointer[clusterconfig.TopologyPlan]
}

func newPlanner(ctx context.Context, opts plannerOptions) (*planner, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &planner{
		logger:   logger,
		tracer:   otel.Tracer("github.com/hpc-scale/prepare-scale", trace.WithInstrumentationVersion(metrics.BuildVersion())),
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		textfile: opts.Config.metricsTextfile,
		sink:     opts.Sink,
		settings: opts.Settings,
		writer:   ansible.NewWriter(opts.Config.writerOptions(logger)),
	}

	if p.metrics == nil {
		p.metrics = metrics.GetPlanMetrics()
	}
	if p.gatherer == nil {
		p.gatherer = prometheus.DefaultGatherer
	}

	if p.sink == nil {
		sink, err := p.buildSink(ctx, opts.Config)
		if err != nil {
			return nil, err
		}
		p.sink = sink
	}

	return p, nil
}

func (p *planner) buildSink(ctx context.Context, config *config) (artifacts.Sink, error) {
	sinks := []artifacts.Sink{
		artifacts.NewFileSink(artifacts.FileSinkOptions{
			Logger: p.logger.Named("filesink"),
			Dir:    filepath.Dir(config.tfInvPath),
		}),
	}

	endpoints := config.etcdEndpointList()
	if len(endpoints) == 0 {
		return artifacts.Multi(sinks...), nil
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
		Context:     ctx,
		Logger:      p.logger.Named("etcd"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create etcd client")
	}
	p.etcd = client

	etcdSink, err := artifacts.NewEtcdSink(artifacts.EtcdSinkOptions{
		Logger:      p.logger.Named("etcdsink"),
		KV:          client,
		KeyPrefix:   config.etcdPrefix,
		ClusterName: config.etcdClusterName,
	})
	if err != nil {
		return nil, err
	}

	return artifacts.Multi(append(sinks, etcdSink)...), nil
}

func (p *planner) LatestPlan() *clusterconfig.TopologyPlan {
	return p.latest.Load()
}

// Run plans rec and writes every output. Nothing is written when the plan
// cannot be assembled. Sinks publish after the ansible files are on disk, so
// a sink failure leaves those files in place while the previous plan stays
// the latest one.
func (p *planner) Run(ctx context.Context, rec *inventory.Record) (*clusterconfig.TopologyPlan, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.lastRecord = rec
	return p.runLocked(ctx, rec)
}

// Reconfigure swaps the settings and writer options, then re-plans the last
// record seen, if any.
func (p *planner) Reconfigure(
	ctx context.Context,
	settings *clusterconfig.Settings,
	writerOpts ansible.WriterOptions,
) (*clusterconfig.TopologyPlan, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.settings = settings
	p.writer = ansible.NewWriter(writerOpts)

	if p.lastRecord == nil {
		return nil, nil
	}
	return p.runLocked(ctx, p.lastRecord)
}

func (p *planner) runLocked(ctx context.Context, rec *inventory.Record) (*clusterconfig.TopologyPlan, error) {
	ctx, span := p.tracer.Start(ctx, "plan")
	defer span.End()

	plan, err := p.plan(ctx, rec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.metrics.RecordFailure(ctx, failureReason(err))
		p.exportMetrics()
		return nil, err
	}

	span.SetAttributes(
		attribute.String("run_id", plan.RunID),
		attribute.String("cluster_type", plan.ClusterType),
		attribute.Int("quorum_count", plan.QuorumCount))

	p.metrics.RecordPlan(ctx, plan)
	p.exportMetrics()
	p.latest.Store(plan)

	p.logger.Info("planned cluster",
		zap.String("runId", plan.RunID),
		zap.String("clusterType", plan.ClusterType),
		zap.Int("quorumCount", plan.QuorumCount),
		zap.Int("nodes", len(plan.Topology.Nodes)),
		zap.Int("disks", len(plan.Disks)),
		zap.String("guiAddress", plan.GUIAddress))

	return plan, nil
}

func (p *planner) plan(ctx context.Context, rec *inventory.Record) (*clusterconfig.TopologyPlan, error) {
	plan, err := clusterconfig.Assemble(rec, p.settings)
	if err != nil {
		return nil, err
	}

	if _, err := p.writer.Write(plan); err != nil {
		return nil, err
	}

	if err := p.sink.Cleanup(ctx, plan.ClusterType); err != nil {
		return nil, errors.WithMessage(err, "ansible outputs written but stale artifacts could not be removed")
	}
	if err := p.sink.Publish(ctx, plan); err != nil {
		return nil, errors.WithMessage(err, "ansible outputs written but the plan could not be published")
	}

	return plan, nil
}

func (p *planner) exportMetrics() {
	if p.textfile == "" {
		return
	}

	if err := metrics.WriteTextfile(p.textfile, p.gatherer); err != nil {
		p.logger.Warn("failed to export metrics", zap.Error(err))
	}
}

func (p *planner) Close() {
	if p.etcd == nil {
		return
	}

	if err := p.etcd.Close(); err != nil {
		p.logger.Debug("failed to close etcd client", zap.Error(err))
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, planerrors.ErrMissingInputField):
		return "missing_input_field"
	case errors.Is(err, planerrors.ErrInvalidNumericInput):
		return "invalid_numeric_input"
	case errors.Is(err, planerrors.ErrInconsistentTopology):
		return "inconsistent_topology"
	default:
		return "error"
	}
}
