// Package worker provides background reminder dispatch for BarberSync.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/barbersync/barbersync/internal/messaging"
	"github.com/barbersync/barbersync/internal/telemetry"
)

const tracerName = "github.com/barbersync/barbersync/internal/worker"

// DispatchJob runs reminder batches handed over by the scheduler. It owns no
// selection logic: which bookings deserve a reminder is decided upstream,
// and an abandoned run is simply recomputed by the next scheduled one.
type DispatchJob struct {
	dispatcher *messaging.BatchDispatcher
	logger     zerolog.Logger
	tracer     trace.Tracer
	metrics    *DispatchMetrics
}

// DispatchMetrics tracks dispatch job statistics.
type DispatchMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns       int64
	MessagesSent    int64
	MessagesFailed  int64
	MessagesSkipped int64

	// Timings
	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// DispatchJobConfig holds configuration for creating a DispatchJob.
type DispatchJobConfig struct {
	Dispatcher *messaging.BatchDispatcher
	Logger     zerolog.Logger
}

// NewDispatchJob creates a new dispatch job processor.
func NewDispatchJob(cfg DispatchJobConfig) *DispatchJob {
	return &DispatchJob{
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger,
		tracer:     telemetry.Tracer(tracerName),
		metrics:    &DispatchMetrics{},
	}
}

// Run dispatches one reminder batch and records its outcome.
func (j *DispatchJob) Run(ctx context.Context, messages []messaging.DispatchRequest) messaging.BatchReport {
	ctx, span := j.tracer.Start(ctx, "reminder_dispatch")
	defer span.End()

	j.logger.Info().
		Int("total", len(messages)).
		Msg("starting reminder dispatch job")

	report := j.dispatcher.Dispatch(ctx, messages)

	span.SetAttributes(
		attribute.String("dispatch.run_id", report.RunID),
		attribute.Int("dispatch.sent", report.Sent),
		attribute.Int("dispatch.failed", report.Failed),
		attribute.Int("dispatch.skipped", report.Skipped),
	)

	j.updateMetrics(report)

	j.logger.Info().
		Str("run_id", report.RunID).
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Dur("duration", report.Duration).
		Msg("reminder dispatch job completed")

	return report
}

func (j *DispatchJob) updateMetrics(report messaging.BatchReport) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.MessagesSent += int64(report.Sent)
	j.metrics.MessagesFailed += int64(report.Failed)
	j.metrics.MessagesSkipped += int64(report.Skipped)
	j.metrics.LastRunAt = time.Now()
	j.metrics.LastRunDuration = report.Duration
	j.metrics.TotalDuration += report.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *DispatchJob) GetMetrics() DispatchMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return DispatchMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		MessagesSent:    j.metrics.MessagesSent,
		MessagesFailed:  j.metrics.MessagesFailed,
		MessagesSkipped: j.metrics.MessagesSkipped,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
		TotalDuration:   j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *DispatchJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"messages_sent":     m.MessagesSent,
		"messages_failed":   m.MessagesFailed,
		"messages_skipped":  m.MessagesSkipped,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
