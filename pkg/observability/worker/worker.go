package worker

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Instrumenter wraps background jobs in a span and records job metrics.
type Instrumenter struct {
	tracer      trace.Tracer
	busy        metric.Int64UpDownCounter
	jobDuration metric.Float64Histogram
	jobsTotal   metric.Int64Counter
}

// NewInstrumenter registers the job instruments on meter.
func NewInstrumenter(tracer trace.Tracer, meter metric.Meter, prefix string) (*Instrumenter, error) {
	busy, err := meter.Int64UpDownCounter(
		fmt.Sprintf("%s_workers_busy", prefix),
		metric.WithDescription("Number of workers running a job"),
	)
	if err != nil {
		return nil, err
	}

	jobDuration, err := meter.Float64Histogram(
		fmt.Sprintf("%s_job_duration_seconds", prefix),
		metric.WithDescription("Background job duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	jobsTotal, err := meter.Int64Counter(
		fmt.Sprintf("%s_jobs_total", prefix),
		metric.WithDescription("Total background jobs processed"),
	)
	if err != nil {
		return nil, err
	}

	return &Instrumenter{
		tracer:      tracer,
		busy:        busy,
		jobDuration: jobDuration,
		jobsTotal:   jobsTotal,
	}, nil
}

// Run executes fn inside a worker.<jobType> span. A panic in fn is recorded as
// an error and re-raised.
func (i *Instrumenter) Run(ctx context.Context, jobType, jobID string, fn func(context.Context) error) (err error) {
	i.busy.Add(ctx, 1)
	defer i.busy.Add(ctx, -1)

	ctx, span := i.tracer.Start(ctx, "worker."+jobType,
		trace.WithAttributes(
			attribute.String("job.type", jobType),
			attribute.String("job.id", jobID),
		),
	)
	start := time.Now()

	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}

		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		attrs := metric.WithAttributes(
			attribute.String("job.type", jobType),
			attribute.String("status", status),
		)
		i.jobDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		i.jobsTotal.Add(ctx, 1, attrs)
		span.End()

		if r != nil {
			panic(r)
		}
	}()

	return fn(ctx)
}
