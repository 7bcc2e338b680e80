package messaging

import "context"

// Transport performs one outbound send of one text message through one named
// gateway session. Implementations normalize the recipient address and apply
// a bounded request timeout; they perform no retries and hold no state about
// prior sends. Success and failure reporting to the circuit breaker is wired
// by the caller, not the transport.
type Transport interface {
	// Name identifies the transport for logging and health reporting.
	Name() string

	// Send delivers body to the raw recipient phone number through the
	// given session. An empty session means the shared default session.
	// Failures are returned as *SendError.
	Send(ctx context.Context, session, rawPhone, body string) error
}
