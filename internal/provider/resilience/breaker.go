// Package resilience provides the circuit breaker that protects the
// application from a slow or failing messaging gateway, plus a registry
// exposing breaker health to the ops endpoints.
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrCircuitOpen is returned by callers when the breaker rejects a call
// without attempting the gateway.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the current state of a circuit breaker.
type State int

const (
	// StateClosed allows all calls through while tracking failures.
	StateClosed State = iota

	// StateOpen rejects all calls until the current cooldown delay elapses.
	StateOpen

	// StateHalfOpen allows a single probe call to test gateway recovery.
	StateHalfOpen
)

// String returns the lowercase state name used in logs and health payloads.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds configuration for a circuit breaker.
type Config struct {
	// Name identifies the breaker for logging and health reporting.
	Name string

	// FailureThreshold is the number of consecutive failures that trips
	// the breaker. Default: 3
	FailureThreshold int

	// BaseDelay is the initial cooldown after tripping. Default: 30s
	BaseDelay time.Duration

	// Multiplier grows the cooldown on repeated failures while open.
	// Default: 2
	Multiplier float64

	// MaxDelay bounds the cooldown growth. Default: 1 hour
	MaxDelay time.Duration

	// OnStateChange is called whenever the breaker transitions between
	// states. It runs with the breaker's lock held; keep it cheap.
	OnStateChange func(name string, from, to State)

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// DefaultConfig returns the exponential-backoff profile used for gateway
// transports: trip after 3 consecutive failures, cool down 30s doubling up
// to 1 hour.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 3,
		BaseDelay:        30 * time.Second,
		Multiplier:       2,
		MaxDelay:         time.Hour,
	}
}

// FixedCooldownConfig returns a profile with a flat cooldown: trip after
// 5 consecutive failures, always wait 60s before probing again.
func FixedCooldownConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		BaseDelay:        60 * time.Second,
		Multiplier:       1,
		MaxDelay:         60 * time.Second,
	}
}

// Snapshot is a read-only view of breaker state for health reporting.
type Snapshot struct {
	State                State         `json:"state"`
	ConsecutiveFailures  int           `json:"consecutiveFailures"`
	TotalFailures        uint64        `json:"totalFailures"`
	TotalBlockedRequests uint64        `json:"totalBlockedRequests"`
	NextRetryIn          time.Duration `json:"nextRetryIn"`
}

// Breaker is a circuit breaker tracking consecutive failures of one gateway
// call path. It never performs I/O itself; callers check Allow before a send
// and report the outcome with RecordSuccess or RecordFailure.
//
// One breaker instance is created per transport at process start and lives
// for the process lifetime. All methods are safe for concurrent use.
type Breaker struct {
	mu  sync.Mutex
	cfg Config

	state                State
	consecutiveFailures  int
	totalFailures        uint64
	totalBlockedRequests uint64
	currentDelay         time.Duration
	lastFailure          time.Time

	delays *backoff.ExponentialBackOff
}

// New creates a circuit breaker in the closed state.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 30 * time.Second
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	// The cooldown sequence (base, base*m, ..., max, max, ...) is exactly
	// an exponential backoff with jitter disabled.
	delays := backoff.NewExponentialBackOff()
	delays.InitialInterval = cfg.BaseDelay
	delays.Multiplier = cfg.Multiplier
	delays.MaxInterval = cfg.MaxDelay
	delays.RandomizationFactor = 0
	delays.MaxElapsedTime = 0
	delays.Reset()

	return &Breaker{
		cfg:          cfg,
		state:        StateClosed,
		currentDelay: cfg.BaseDelay,
		delays:       delays,
	}
}

// Name returns the breaker's configured name.
func (b *Breaker) Name() string {
	return b.cfg.Name
}

// Allow reports whether a call may proceed. It never blocks or sleeps.
//
// Closed: always true. Open: true exactly once the cooldown has elapsed,
// transitioning to half-open; otherwise false and the rejection is counted.
// Half-open: false while the single probe is in flight.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true

	case StateOpen:
		if b.cfg.Now().Sub(b.lastFailure) >= b.currentDelay {
			b.transition(StateHalfOpen)
			return true
		}
		b.totalBlockedRequests++
		return false

	case StateHalfOpen:
		// One probe at a time; concurrent callers wait for its verdict.
		b.totalBlockedRequests++
		return false
	}

	return false
}

// RecordSuccess resets the breaker to closed. Idempotent.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.totalBlockedRequests = 0
	b.currentDelay = b.cfg.BaseDelay
	b.delays.Reset()
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
}

// RecordFailure counts a gateway failure, tripping the breaker once the
// consecutive-failure threshold is reached and growing the cooldown on
// repeated failures while open.
//
// Rejections (ErrCircuitOpen) must not be reported here: a blocked breaker
// feeding its own failure count would extend its block indefinitely.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	b.totalFailures++
	b.lastFailure = b.cfg.Now()

	switch b.state {
	case StateClosed:
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.delays.Reset()
			b.currentDelay = b.delays.NextBackOff()
			b.transition(StateOpen)
		}

	case StateHalfOpen:
		// Probe failed; back off further.
		b.currentDelay = b.delays.NextBackOff()
		b.transition(StateOpen)

	case StateOpen:
		b.currentDelay = b.delays.NextBackOff()
	}
}

// Status returns a snapshot of the breaker for health-check exposure.
func (b *Breaker) Status() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{
		State:                b.state,
		ConsecutiveFailures:  b.consecutiveFailures,
		TotalFailures:        b.totalFailures,
		TotalBlockedRequests: b.totalBlockedRequests,
	}

	if b.state != StateClosed {
		if remaining := b.currentDelay - b.cfg.Now().Sub(b.lastFailure); remaining > 0 {
			snap.NextRetryIn = remaining
		}
	}

	return snap
}

// State returns the current state of the breaker.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// transition must be called with the mutex held.
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	if b.cfg.OnStateChange != nil && from != to {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}
