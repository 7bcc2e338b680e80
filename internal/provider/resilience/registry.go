package resilience

import (
	"sync"
	"time"
)

// GatewayHealth represents the health status of one messaging gateway
// transport, as surfaced by the ops status endpoint.
type GatewayHealth struct {
	// Name is the gateway transport identifier.
	Name string

	// Breaker is the current circuit breaker snapshot.
	Breaker Snapshot

	// LastSuccessAt is the timestamp of the last successful send.
	LastSuccessAt *time.Time

	// LastFailureAt is the timestamp of the last failed send.
	LastFailureAt *time.Time

	// LastError is the most recent error message, if any.
	LastError string
}

// IsHealthy returns true if the gateway is considered healthy.
func (h *GatewayHealth) IsHealthy() bool {
	return h.Breaker.State == StateClosed
}

// IsDegraded returns true if the gateway is being probed for recovery.
func (h *GatewayHealth) IsDegraded() bool {
	return h.Breaker.State == StateHalfOpen
}

// IsUnhealthy returns true if the gateway circuit is open.
func (h *GatewayHealth) IsUnhealthy() bool {
	return h.Breaker.State == StateOpen
}

// Registry tracks gateway breakers and their last-seen send outcomes.
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]*registeredGateway
}

type registeredGateway struct {
	breaker       *Breaker
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty gateway registry.
func NewRegistry() *Registry {
	return &Registry{
		gateways: make(map[string]*registeredGateway),
	}
}

// Register adds a gateway breaker to the registry.
func (r *Registry) Register(name string, breaker *Breaker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[name] = &registeredGateway{
		breaker: breaker,
	}
}

// Unregister removes a gateway from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.gateways, name)
}

// RecordSuccess records a successful send for a gateway.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gateways[name]; ok {
		now := time.Now()
		g.lastSuccessAt = &now
	}
}

// RecordFailure records a failed send for a gateway.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gateways[name]; ok {
		now := time.Now()
		g.lastFailureAt = &now
		if err != nil {
			g.lastError = err.Error()
		}
	}
}

// GetHealth returns the health status of a specific gateway, or nil if it
// is not registered.
func (r *Registry) GetHealth(name string) *GatewayHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.gateways[name]
	if !ok {
		return nil
	}

	return &GatewayHealth{
		Name:          name,
		Breaker:       g.breaker.Status(),
		LastSuccessAt: g.lastSuccessAt,
		LastFailureAt: g.lastFailureAt,
		LastError:     g.lastError,
	}
}

// GetAllHealth returns the health status of all registered gateways.
func (r *Registry) GetAllHealth() []*GatewayHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]*GatewayHealth, 0, len(r.gateways))
	for name, g := range r.gateways {
		health = append(health, &GatewayHealth{
			Name:          name,
			Breaker:       g.breaker.Status(),
			LastSuccessAt: g.lastSuccessAt,
			LastFailureAt: g.lastFailureAt,
			LastError:     g.lastError,
		})
	}

	return health
}

// GatewayCount returns the number of registered gateways.
func (r *Registry) GatewayCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.gateways)
}
