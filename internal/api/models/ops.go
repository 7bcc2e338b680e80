package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Time       Timestamp         `json:"time"`
	Subsystems []SubsystemStatus `json:"subsystems"`
	Gateways   []GatewayStatus   `json:"gateways"`
}

// SubsystemStatus represents the status of a subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// GatewayStatus represents the status of an outbound messaging gateway,
// including its circuit breaker state.
type GatewayStatus struct {
	Gateway             string       `json:"gateway"`
	Status              HealthStatus `json:"status"`
	CircuitState        string       `json:"circuitState"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	TotalFailures       uint64       `json:"totalFailures"`
	BlockedRequests     uint64       `json:"blockedRequests"`
	NextRetryInSeconds  *int64       `json:"nextRetryInSeconds,omitempty"`
	LastSuccessAt       *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *Timestamp   `json:"lastFailureAt,omitempty"`
	Message             *string      `json:"message,omitempty"`
}
