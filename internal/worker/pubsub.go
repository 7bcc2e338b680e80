package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/barbersync/barbersync/internal/messaging"
)

// PubSubHandler handles Pub/Sub messages for the dispatch worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatchJob      *DispatchJob
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	DispatchJob      *DispatchJob
	Logger           zerolog.Logger
}

// DispatchMessage is the payload published by the reminder-selection
// service: a batch of already-filtered reminders to deliver.
type DispatchMessage struct {
	JobType  string            `json:"job_type"`
	BatchID  string            `json:"batch_id,omitempty"`
	Messages []ReminderPayload `json:"messages,omitempty"`
}

// ReminderPayload is one reminder in a dispatch batch.
type ReminderPayload struct {
	TenantID     string `json:"tenant_id"`
	CustomerName string `json:"customer_name"`
	Phone        string `json:"phone"`
	Body         string `json:"body"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// One batch at a time: the dispatcher's anti-automation pacing is
	// defeated if two batches interleave sends on the same account. The
	// extension window covers a full batch at the slowest pacing.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 60 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatchJob:      cfg.DispatchJob,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	var dispatchMsg DispatchMessage
	if err := json.Unmarshal(msg.Data, &dispatchMsg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		msg.Nack()
		return
	}

	switch dispatchMsg.JobType {
	case "reminder_dispatch":
		h.handleReminderDispatch(ctx, dispatchMsg)
	default:
		logger.Warn().Str("job_type", dispatchMsg.JobType).Msg("unknown job type")
		msg.Ack() // Ack unknown messages to prevent redelivery
		return
	}

	logger.Info().
		Str("job_type", dispatchMsg.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed")

	// Always ack: delivery is best-effort and failed sends are already
	// counted in the batch report. A redelivered batch would double-send
	// every reminder that did go through.
	msg.Ack()
}

func (h *PubSubHandler) handleReminderDispatch(ctx context.Context, msg DispatchMessage) {
	requests := make([]messaging.DispatchRequest, 0, len(msg.Messages))
	for _, m := range msg.Messages {
		requests = append(requests, messaging.DispatchRequest{
			ID:           "msg_" + uuid.New().String()[:8],
			TenantID:     m.TenantID,
			CustomerName: m.CustomerName,
			Phone:        m.Phone,
			Body:         m.Body,
		})
	}

	h.logger.Info().
		Str("batch_id", msg.BatchID).
		Int("messages", len(requests)).
		Msg("starting reminder dispatch")

	report := h.dispatchJob.Run(ctx, requests)

	h.logger.Info().
		Str("batch_id", msg.BatchID).
		Str("run_id", report.RunID).
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("reminder dispatch finished")
}
