// Package handler provides HTTP handlers for the BarberSync ops API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/barbersync/barbersync/internal/api/models"
	"github.com/barbersync/barbersync/internal/api/response"
	"github.com/barbersync/barbersync/internal/provider/resilience"
)

// Pinger checks connectivity to a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	db        Pinger
	gateways  *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, db Pinger, gateways *resilience.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		db:        db,
		gateways:  gateways,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			health := models.Health{
				Status: models.HealthStatusFail,
				Time:   models.Timestamp(time.Now()),
				Details: map[string]interface{}{
					"database": err.Error(),
				},
			}
			response.JSON(w, r, http.StatusServiceUnavailable, health)
			return
		}
	}

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - gateway and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{h.databaseStatus(ctx)},
		Gateways:   h.gatewayStatuses(),
	}

	for _, s := range status.Subsystems {
		if s.Status == models.HealthStatusFail {
			status.Status = models.HealthStatusDegraded
		}
	}
	for _, g := range status.Gateways {
		if g.Status != models.HealthStatusOK {
			status.Status = models.HealthStatusDegraded
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) databaseStatus(ctx context.Context) models.SubsystemStatus {
	s := models.SubsystemStatus{Name: "cloud-sql", Status: models.HealthStatusOK}
	if h.db == nil {
		detail := "not configured"
		s.Detail = &detail
		return s
	}
	if err := h.db.Ping(ctx); err != nil {
		detail := err.Error()
		s.Status = models.HealthStatusFail
		s.Detail = &detail
	}
	return s
}

func (h *OpsHandler) gatewayStatuses() []models.GatewayStatus {
	if h.gateways == nil {
		return []models.GatewayStatus{}
	}

	all := h.gateways.GetAllHealth()
	statuses := make([]models.GatewayStatus, 0, len(all))
	for _, g := range all {
		gs := models.GatewayStatus{
			Gateway:             g.Name,
			Status:              models.HealthStatusOK,
			CircuitState:        g.Breaker.State.String(),
			ConsecutiveFailures: g.Breaker.ConsecutiveFailures,
			TotalFailures:       g.Breaker.TotalFailures,
			BlockedRequests:     g.Breaker.TotalBlockedRequests,
		}
		switch {
		case g.IsUnhealthy():
			gs.Status = models.HealthStatusFail
		case g.IsDegraded():
			gs.Status = models.HealthStatusDegraded
		}
		if g.Breaker.NextRetryIn > 0 {
			seconds := int64(g.Breaker.NextRetryIn / time.Second)
			gs.NextRetryInSeconds = &seconds
		}
		if g.LastSuccessAt != nil {
			ts := models.Timestamp(*g.LastSuccessAt)
			gs.LastSuccessAt = &ts
		}
		if g.LastFailureAt != nil {
			ts := models.Timestamp(*g.LastFailureAt)
			gs.LastFailureAt = &ts
		}
		if g.LastError != "" {
			msg := g.LastError
			gs.Message = &msg
		}
		statuses = append(statuses, gs)
	}
	return statuses
}
