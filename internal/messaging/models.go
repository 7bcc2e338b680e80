// Package messaging provides the outbound WhatsApp dispatch layer: the
// gateway transport contract, the per-barbershop instance router, and the
// throttled batch dispatcher used by the reminder scheduler.
package messaging

import (
	"time"
)

// DispatchRequest is one message to deliver. It is created by a caller
// (the reminder scheduler or a booking handler), consumed synchronously by
// one send attempt, and discarded.
type DispatchRequest struct {
	// ID identifies the message in logs ("msg_..." prefix).
	ID string

	// TenantID is the barbershop the message belongs to. Empty means the
	// shared default session is used directly.
	TenantID string

	// CustomerName is the recipient's display name, used only for logging
	// and to detect references to soft-deleted customers.
	CustomerName string

	// Phone is the raw recipient phone number; it may contain formatting
	// characters and is normalized by the transport.
	Phone string

	// Body is the plain-text message body.
	Body string
}

// BatchReport summarizes one batch dispatch run.
type BatchReport struct {
	// RunID identifies the run in logs ("run_..." prefix).
	RunID string

	// Total is the number of messages in the batch.
	Total int

	// Sent is the number of messages delivered to the gateway.
	Sent int

	// Failed is the number of send attempts that errored.
	Failed int

	// Skipped is the number of messages dropped before any send attempt
	// because required fields were missing.
	Skipped int

	// Duration is the wall-clock time of the run, pacing included.
	Duration time.Duration
}
