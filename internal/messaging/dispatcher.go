package messaging

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sender delivers one routed message. Implemented by Service; narrowed to an
// interface so dispatcher tests can stub the whole router/transport stack.
type Sender interface {
	Send(ctx context.Context, tenantID, rawPhone, body string) error
}

// DispatcherConfig holds configuration for the batch dispatcher.
type DispatcherConfig struct {
	// Sender routes and sends each message (required).
	Sender Sender

	// MinDelay and MaxDelay bound the randomized pause between
	// consecutive sends. Defaults: 5s and 15s.
	MinDelay time.Duration
	MaxDelay time.Duration

	// Sleep overrides the pause implementation, for tests.
	Sleep func(ctx context.Context, d time.Duration)

	// Logger for dispatch operations.
	Logger zerolog.Logger
}

// BatchDispatcher sends a list of reminder messages strictly one at a time,
// pausing a random 5-15s between sends. The pacing keeps the gateway account
// from looking automated and is a hard requirement, not a performance knob;
// a large batch deliberately runs for minutes from the scheduled job.
type BatchDispatcher struct {
	sender   Sender
	minDelay time.Duration
	maxDelay time.Duration
	sleep    func(ctx context.Context, d time.Duration)
	logger   zerolog.Logger
}

// NewBatchDispatcher creates a new batch dispatcher.
func NewBatchDispatcher(cfg DispatcherConfig) *BatchDispatcher {
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = 5 * time.Second
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = 15 * time.Second
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	return &BatchDispatcher{
		sender:   cfg.Sender,
		minDelay: cfg.MinDelay,
		maxDelay: cfg.MaxDelay,
		sleep:    sleep,
		logger:   cfg.Logger,
	}
}

// Dispatch processes messages in input order, one at a time. Messages with a
// missing customer or phone are skipped silently (upstream data routinely
// references soft-deleted entities); a failed send is logged and counted but
// never aborts the rest of the batch. Context cancellation abandons the
// remaining messages.
func (d *BatchDispatcher) Dispatch(ctx context.Context, messages []DispatchRequest) BatchReport {
	start := time.Now()
	report := BatchReport{
		RunID: "run_" + uuid.New().String()[:8],
		Total: len(messages),
	}

	logger := d.logger.With().Str("run_id", report.RunID).Logger()
	logger.Info().Int("total", report.Total).Msg("starting batch dispatch")

	for i, msg := range messages {
		if ctx.Err() != nil {
			logger.Warn().Int("remaining", len(messages)-i).Msg("batch dispatch abandoned")
			break
		}

		switch {
		case msg.Phone == "" || msg.CustomerName == "":
			report.Skipped++
			logger.Debug().
				Str("message_id", msg.ID).
				Str("tenant_id", msg.TenantID).
				Msg("skipping message with missing customer or phone")

		default:
			if err := d.sender.Send(ctx, msg.TenantID, msg.Phone, msg.Body); err != nil {
				report.Failed++
				logger.Warn().Err(err).
					Str("message_id", msg.ID).
					Str("tenant_id", msg.TenantID).
					Msg("send failed")
			} else {
				report.Sent++
				logger.Debug().
					Str("message_id", msg.ID).
					Str("tenant_id", msg.TenantID).
					Msg("message sent")
			}
		}

		if i < len(messages)-1 {
			d.sleep(ctx, d.pause())
		}
	}

	report.Duration = time.Since(start)
	logger.Info().
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Dur("duration", report.Duration).
		Msg("batch dispatch completed")

	return report
}

// pause returns a uniformly random duration in [minDelay, maxDelay].
func (d *BatchDispatcher) pause() time.Duration {
	if d.maxDelay == d.minDelay {
		return d.minDelay
	}
	return d.minDelay + rand.N(d.maxDelay-d.minDelay)
}

// sleepContext sleeps for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
