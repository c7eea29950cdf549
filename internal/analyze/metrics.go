package analyze

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("codescope/analyze")

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codescope_analyze_runs_total",
		Help: "Analysis runs by outcome",
	}, []string{"outcome"})

	filesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codescope_analyze_files_total",
		Help: "Source units analyzed by language",
	}, []string{"language"})

	fileErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codescope_analyze_file_errors_total",
		Help: "Per-file failures by stage",
	}, []string{"stage"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "codescope_analyze_run_duration_seconds",
		Help:    "Wall time of a complete run",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
	})

	duplicateClusters = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "codescope_duplicate_clusters",
		Help: "Duplicate clusters found by the most recent run",
	})
)

func startStage(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "analyze."+name, trace.WithAttributes(attrs...))
}

func endStage(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
