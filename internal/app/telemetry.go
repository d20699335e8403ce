package app

import (
	"context"
	"time"

	sdkapp "github.com/go-faster/sdk/app"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/catalog-cache/internal/controller"
)

// instrumentedRefresher wraps a refresher with a span plus cycle counter and
// duration metrics.
type instrumentedRefresher struct {
	inner    controller.Refresher
	tracer   trace.Tracer
	cycles   metric.Int64Counter
	duration metric.Float64Histogram
}

func newInstrumentedRefresher(inner controller.Refresher, m *sdkapp.Telemetry) (*instrumentedRefresher, error) {
	meter := m.MeterProvider().Meter("catalog-cache")

	cycles, err := meter.Int64Counter("catalog_refresh_cycles_total",
		metric.WithDescription("Completed catalog refresh cycles by outcome"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("catalog_refresh_duration_seconds",
		metric.WithDescription("Catalog refresh cycle duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &instrumentedRefresher{
		inner:    inner,
		tracer:   m.TracerProvider().Tracer("catalog-cache"),
		cycles:   cycles,
		duration: duration,
	}, nil
}

func (r *instrumentedRefresher) Refresh(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "catalog.Refresh")
	defer span.End()

	start := time.Now()
	err := r.inner.Refresh(ctx)

	outcome := "success"
	if err != nil {
		outcome = "failure"
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	r.cycles.Add(ctx, 1, attrs)
	r.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	return err
}
