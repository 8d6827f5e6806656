package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/jittakal/mqttpubstore/pkg/buffer"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// LivenessHandler returns a handler for Kubernetes liveness probes.
// Liveness probes should only fail if the process needs to be restarted.
func LivenessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "alive", http.StatusOK
		if !checker.Liveness() {
			status, code = "not alive", http.StatusServiceUnavailable
		}
		writeHealth(w, code, HealthResponse{Status: status}, logger)
	}
}

// ReadinessHandler returns a handler for Kubernetes readiness probes.
func ReadinessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ready", http.StatusOK
		if !checker.Readiness(r.Context()) {
			status, code = "not ready", http.StatusServiceUnavailable
		}
		writeHealth(w, code, HealthResponse{Status: status, Checks: checker.GetStatus()}, logger)
	}
}

func writeHealth(w http.ResponseWriter, code int, response HealthResponse, logger *slog.Logger) {
	response.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("failed to encode health response", "error", err)
	}
}

// BufferHealth reports health from publication buffer stats.
//
// The process is not alive once a batch has been outstanding for longer than
// maxLeaseAge, which means egress is stuck. It is ready after MarkReady until
// the buffer is closed.
type BufferHealth struct {
	inspector   buffer.Inspector
	maxLeaseAge time.Duration
	ready       atomic.Bool
}

// NewBufferHealth creates a checker. A maxLeaseAge of 0 disables the stuck
// batch check.
func NewBufferHealth(inspector buffer.Inspector, maxLeaseAge time.Duration) *BufferHealth {
	return &BufferHealth{inspector: inspector, maxLeaseAge: maxLeaseAge}
}

// MarkReady sets whether ingress and egress are running.
func (h *BufferHealth) MarkReady(ready bool) {
	h.ready.Store(ready)
}

// Liveness implements HealthChecker.
func (h *BufferHealth) Liveness() bool {
	if h.maxLeaseAge <= 0 {
		return true
	}
	stats := h.inspector.Stats()
	return !stats.Outstanding || stats.LeaseAge <= h.maxLeaseAge
}

// Readiness implements HealthChecker.
func (h *BufferHealth) Readiness(ctx context.Context) bool {
	return h.ready.Load() && !h.inspector.Stats().Closed
}

// GetStatus implements HealthChecker.
func (h *BufferHealth) GetStatus() map[string]string {
	stats := h.inspector.Stats()

	status := map[string]string{
		"queue_depth": strconv.Itoa(stats.QueueDepth),
		"next_offset": strconv.FormatUint(stats.NextOffset, 10),
		"outstanding": strconv.FormatBool(stats.Outstanding),
		"closed":      strconv.FormatBool(stats.Closed),
	}
	if stats.Outstanding {
		status["outstanding_batch"] = fmt.Sprintf("%d..%d", stats.OutstandingStart, stats.OutstandingEnd)
		status["outstanding_size"] = strconv.Itoa(stats.OutstandingSize)
		status["deliveries"] = strconv.Itoa(stats.Deliveries)
		status["lease_age"] = stats.LeaseAge.Round(time.Millisecond).String()
	}
	return status
}
