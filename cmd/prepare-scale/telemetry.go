package main

import (
	"context"

	"github.com/hpc-scale/prepare-scale/pkg/metrics"
	"github.com/pkg/errors"
	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.uber.org/zap"
)

// planMetricLabels are the only attributes kept on plan metrics, so a stray
// attribute can never blow up the series count of a long-running watcher.
var planMetricLabels = []attribute.Key{"cluster_type", "result", "nodeclass", "failure_group"}

type telemetryOptions struct {
	Logger *zap.Logger

	OTLPEndpoint    string
	EnableTraces    bool
	EnableMetrics   bool
	TraceEverything bool

	// InventoryPath and InstallInfraPath identify which cluster this process
	// plans for in every exported resource.
	InventoryPath    string
	InstallInfraPath string

	// Registerer defaults to the prometheus default registry, which backs
	// both /metrics and the metrics textfile.
	Registerer promclient.Registerer
}

type telemetry struct {
	logger         *zap.Logger
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

func (o *telemetryOptions) resource(ctx context.Context) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("prepare-scale"),
			semconv.ServiceVersionKey.String(metrics.BuildVersion()),
			attribute.String("prepare_scale.inventory_path", o.InventoryPath),
			attribute.String("prepare_scale.install_infra_path", o.InstallInfraPath),
		),
	)
	if err != nil {
		if res == nil {
			return nil, err
		}

		o.Logger.Warn("failed to setup some part of opentelemetry resource", zap.Error(err))
	}
	return res, nil
}

func planMetricView() sdkmetric.View {
	return sdkmetric.NewView(
		sdkmetric.Instrument{Name: "plan*"},
		sdkmetric.Stream{AttributeFilter: attribute.NewAllowKeysFilter(planMetricLabels...)},
	)
}

func initTelemetry(ctx context.Context, opts telemetryOptions) (*telemetry, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	res, err := opts.resource(ctx)
	if err != nil {
		return nil, err
	}

	registerer := opts.Registerer
	if registerer == nil {
		registerer = promclient.DefaultRegisterer
	}

	promExp, err := prometheus.New(prometheus.WithRegisterer(registerer))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create prometheus exporter")
	}

	meterOpts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
		sdkmetric.WithView(planMetricView()),
	}
	if opts.EnableMetrics && opts.OTLPEndpoint != "" {
		metricExp, err := otlpmetricgrpc.New(
			ctx,
			otlpmetricgrpc.WithInsecure(),
			otlpmetricgrpc.WithEndpoint(opts.OTLPEndpoint))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create otlp metric exporter")
		}

		meterOpts = append(meterOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)))
	}

	t := &telemetry{
		logger:        opts.Logger,
		meterProvider: sdkmetric.NewMeterProvider(meterOpts...),
	}

	// without a tracer provider the global no-op tracer stays in place
	if opts.EnableTraces && opts.OTLPEndpoint != "" {
		traceClient := otlptracegrpc.NewClient(
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(opts.OTLPEndpoint))
		traceExp, err := otlptrace.New(ctx, traceClient)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create otlp trace exporter")
		}

		// a plan run is a root span, so without trace-everything only runs
		// joined to an upstream sampled trace are exported
		baseTracing := sdktrace.NeverSample()
		if opts.TraceEverything {
			baseTracing = sdktrace.AlwaysSample()
		}

		t.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.ParentBased(baseTracing)),
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(traceExp),
		)
	}

	return t, nil
}

// install makes the providers the process wide defaults used by the planner.
func (t *telemetry) install() {
	otel.SetMeterProvider(t.meterProvider)
	if t.tracerProvider != nil {
		otel.SetTracerProvider(t.tracerProvider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	}
}

// Shutdown flushes pending spans and metrics.
func (t *telemetry) Shutdown(ctx context.Context) {
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			t.logger.Warn("failed to flush traces", zap.Error(err))
		}
	}
	if err := t.meterProvider.Shutdown(ctx); err != nil {
		t.logger.Warn("failed to flush metrics", zap.Error(err))
	}
}
