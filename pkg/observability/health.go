package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

// HealthChecker provides health check functionality
type HealthChecker struct {
	primary *redis.Client
	replica *redis.Client
	// idpCount reports the size of the current IdP metadata snapshot.
	idpCount func() int
}

// NewHealthChecker creates a new health checker. replica and idpCount may be
// nil when not configured.
func NewHealthChecker(primary, replica *redis.Client, idpCount func() int) *HealthChecker {
	return &HealthChecker{
		primary:  primary,
		replica:  replica,
		idpCount: idpCount,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Liveness returns a simple liveness probe (always returns 200 if server is running)
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness returns a readiness probe (checks all dependencies)
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")

	// Return 503 if unhealthy, 200 if healthy or degraded
	if status.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(status)
}

// Check performs a comprehensive health check
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Dependencies: make(map[string]DependencyStatus),
	}

	// The primary carries session writes: without it no login or logout
	// can complete.
	if h.primary != nil {
		primaryStatus := h.checkRedis(ctx, h.primary)
		status.Dependencies["redis_primary"] = primaryStatus
		if primaryStatus.Status == StatusUnhealthy {
			status.Status = StatusUnhealthy
		}
	}

	// A lost replica degrades reads, the primary still serves them.
	if h.replica != nil && h.replica != h.primary {
		replicaStatus := h.checkRedis(ctx, h.replica)
		status.Dependencies["redis_replica"] = replicaStatus
		if replicaStatus.Status == StatusUnhealthy && status.Status != StatusUnhealthy {
			status.Status = StatusDegraded
		}
	}

	// An empty snapshot blocks new logins; existing sessions keep working.
	if h.idpCount != nil {
		idpStatus := DependencyStatus{Status: StatusHealthy, Timestamp: time.Now()}
		if count := h.idpCount(); count == 0 {
			idpStatus.Status = StatusDegraded
			idpStatus.Message = "no IdP metadata loaded"
			if status.Status != StatusUnhealthy {
				status.Status = StatusDegraded
			}
		}
		status.Dependencies["idp_metadata"] = idpStatus
	}

	return status
}

// checkRedis checks one redis connection
func (h *HealthChecker) checkRedis(ctx context.Context, client *redis.Client) DependencyStatus {
	start := time.Now()
	status := DependencyStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
	}

	err := client.Ping(ctx).Err()
	status.Latency = time.Since(start)

	if err != nil {
		status.Status = StatusUnhealthy
		status.Message = err.Error()
	}
	return status
}

// RegisterHealthRoutes registers health check endpoints
func RegisterHealthRoutes(mux *http.ServeMux, checker *HealthChecker) {
	mux.HandleFunc("/health", checker.Readiness)
	mux.HandleFunc("/health/live", checker.Liveness)
	mux.HandleFunc("/health/ready", checker.Readiness)

	// Kubernetes-style aliases
	mux.HandleFunc("/healthz", checker.Liveness)
	mux.HandleFunc("/readyz", checker.Readiness)
}
