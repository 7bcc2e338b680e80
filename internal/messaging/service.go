package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/barbersync/barbersync/internal/provider/resilience"
	"github.com/barbersync/barbersync/internal/tenant"
)

// ServiceConfig holds configuration for the messaging service.
type ServiceConfig struct {
	// Transport performs the actual gateway sends (required).
	Transport Transport

	// Breaker is the circuit breaker wrapped around every transport
	// attempt (required). Dedicated sessions and the shared default go
	// through the same transport, so they share this breaker.
	Breaker *resilience.Breaker

	// Tenants resolves barbershop session bindings (required).
	Tenants tenant.Directory

	// Registry, if set, records send outcomes for health reporting.
	Registry *resilience.Registry

	// Metrics, if set, records send durations and circuit rejections.
	Metrics GatewayMetrics

	// Logger for send operations.
	Logger zerolog.Logger
}

// GatewayMetrics records send outcomes for observability.
type GatewayMetrics interface {
	RecordSend(gateway string, duration time.Duration, err error)
	RecordBlocked(gateway string)
}

// Service routes messages to the right gateway session for each barbershop.
// A shop with a connected dedicated session sends through it; everyone else
// uses the shared default session. When a dedicated send proves the session
// is gone (401/404 from the gateway), the shop is downgraded to disconnected
// and the message retried once through the default session.
type Service struct {
	transport Transport
	breaker   *resilience.Breaker
	tenants   tenant.Directory
	registry  *resilience.Registry
	metrics   GatewayMetrics
	logger    zerolog.Logger
}

// NewService creates a new messaging service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		transport: cfg.Transport,
		breaker:   cfg.Breaker,
		tenants:   cfg.Tenants,
		registry:  cfg.Registry,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// Send delivers one message for one barbershop. It returns the result of
// whichever transport attempt was made last; callers treat delivery as
// best-effort and must not fail a booking operation on a send error.
func (s *Service) Send(ctx context.Context, tenantID, rawPhone, body string) error {
	if tenantID == "" {
		return s.sendVia(ctx, "", rawPhone, body)
	}

	cfg, err := s.tenants.GetMessagingConfig(ctx, tenantID)
	if err != nil {
		// A missing or unreadable shop record never blocks the message;
		// the shared default session can still deliver it.
		if !errors.Is(err, tenant.ErrTenantNotFound) {
			s.logger.Warn().Err(err).Str("tenant_id", tenantID).
				Msg("tenant lookup failed, using default session")
		}
		return s.sendVia(ctx, "", rawPhone, body)
	}

	if !cfg.HasDedicatedSession() {
		return s.sendVia(ctx, "", rawPhone, body)
	}

	err = s.sendVia(ctx, cfg.InstanceName, rawPhone, body)
	if err == nil {
		return nil
	}

	// Only a definitive "this session is gone" signal triggers fallback.
	// Falling back on ambiguous failures (timeouts in particular) would
	// risk double delivery through the default session.
	if !IsSessionInvalid(err) {
		return err
	}

	s.logger.Warn().
		Str("tenant_id", tenantID).
		Str("instance", cfg.InstanceName).
		Msg("dedicated session invalid, downgrading and falling back to default")

	if derr := s.tenants.SetConnectionStatus(ctx, tenantID, tenant.StatusDisconnected); derr != nil {
		s.logger.Error().Err(derr).Str("tenant_id", tenantID).
			Msg("failed to persist session downgrade")
	}

	return s.sendVia(ctx, "", rawPhone, body)
}

// sendVia performs one breaker-guarded transport attempt.
func (s *Service) sendVia(ctx context.Context, session, rawPhone, body string) error {
	if !s.breaker.Allow() {
		if s.metrics != nil {
			s.metrics.RecordBlocked(s.transport.Name())
		}
		return &SendError{
			Kind:    ErrorCircuitOpen,
			Message: resilience.ErrCircuitOpen.Error(),
		}
	}

	start := time.Now()
	err := s.transport.Send(ctx, session, rawPhone, body)
	if s.metrics != nil {
		s.metrics.RecordSend(s.transport.Name(), time.Since(start), err)
	}

	if err != nil {
		s.breaker.RecordFailure()
		if s.registry != nil {
			s.registry.RecordFailure(s.transport.Name(), err)
		}
		return err
	}

	s.breaker.RecordSuccess()
	if s.registry != nil {
		s.registry.RecordSuccess(s.transport.Name())
	}
	return nil
}
