package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/zatekoja/noshowrisk/internal/domain/entities"
)

const instrumentationName = "github.com/zatekoja/noshowrisk"

// Metrics holds all application metrics
type Metrics struct {
	ScoreCount       metric.Int64Counter
	ScoreDuration    metric.Float64Histogram
	DaysScored       metric.Int64Counter
	CacheHitCount    metric.Int64Counter
	CacheMissCount   metric.Int64Counter
	TrainingRunCount metric.Int64Counter
	ModelROCAUC      metric.Float64Gauge
}

// Setup initializes OpenTelemetry tracing and metrics export plus Go runtime
// instrumentation. The returned function flushes and stops both providers.
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(15*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(time.Second)); err != nil {
		_ = tracerProvider.Shutdown(ctx)
		_ = meterProvider.Shutdown(ctx)
		return nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			meterProvider.Shutdown(ctx),
			tracerProvider.Shutdown(ctx),
		)
	}

	return shutdown, nil
}

// InitMetrics initializes application metrics on the global meter provider
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	scoreCount, err := meter.Int64Counter(
		"noshow.score.count",
		metric.WithDescription("Number of appointments scored, by risk tier"),
	)
	if err != nil {
		return nil, err
	}

	scoreDuration, err := meter.Float64Histogram(
		"noshow.score.duration",
		metric.WithDescription("Scoring request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	daysScored, err := meter.Int64Counter(
		"noshow.range.days",
		metric.WithDescription("Number of schedule days scored"),
	)
	if err != nil {
		return nil, err
	}

	cacheHitCount, err := meter.Int64Counter(
		"cache.hit.count",
		metric.WithDescription("Number of cache hits"),
	)
	if err != nil {
		return nil, err
	}

	cacheMissCount, err := meter.Int64Counter(
		"cache.miss.count",
		metric.WithDescription("Number of cache misses"),
	)
	if err != nil {
		return nil, err
	}

	trainingRuns, err := meter.Int64Counter(
		"noshow.training.runs",
		metric.WithDescription("Number of training runs, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	rocAUC, err := meter.Float64Gauge(
		"noshow.model.roc_auc",
		metric.WithDescription("Held-out ROC-AUC of the last trained model"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ScoreCount:       scoreCount,
		ScoreDuration:    scoreDuration,
		DaysScored:       daysScored,
		CacheHitCount:    cacheHitCount,
		CacheMissCount:   cacheMissCount,
		TrainingRunCount: trainingRuns,
		ModelROCAUC:      rocAUC,
	}, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// RecordScores counts scored appointments per tier. A nil Metrics is a no-op.
func RecordScores(ctx context.Context, metrics *Metrics, operation string, tiers map[entities.RiskTier]int, duration time.Duration) {
	if metrics == nil {
		return
	}
	for tier, n := range tiers {
		metrics.ScoreCount.Add(ctx, int64(n), metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("tier", string(tier)),
		))
	}
	metrics.ScoreDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// RecordDaysScored counts completed schedule days
func RecordDaysScored(ctx context.Context, metrics *Metrics, days int, incomplete bool) {
	if metrics == nil {
		return
	}
	metrics.DaysScored.Add(ctx, int64(days), metric.WithAttributes(attribute.Bool("incomplete", incomplete)))
}

// RecordCacheHit records a cache hit
func RecordCacheHit(ctx context.Context, metrics *Metrics, cache string) {
	if metrics == nil {
		return
	}
	metrics.CacheHitCount.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.name", cache)))
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(ctx context.Context, metrics *Metrics, cache string) {
	if metrics == nil {
		return
	}
	metrics.CacheMissCount.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.name", cache)))
}

// RecordTraining records the outcome of a training run
func RecordTraining(ctx context.Context, metrics *Metrics, kind string, accepted bool, rocAUC float64) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("model.kind", kind),
		attribute.Bool("accepted", accepted),
	)
	metrics.TrainingRunCount.Add(ctx, 1, attrs)
	metrics.ModelROCAUC.Record(ctx, rocAUC, metric.WithAttributes(attribute.String("model.kind", kind)))
}
