package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jittakal/mqttpubstore/internal/buffer"
	pkgbuffer "github.com/jittakal/mqttpubstore/pkg/buffer"
)

// mockHealthChecker implements HealthChecker for testing
type mockHealthChecker struct {
	liveness  bool
	readiness bool
	status    map[string]string
}

func (m *mockHealthChecker) Liveness() bool {
	return m.liveness
}

func (m *mockHealthChecker) Readiness(ctx context.Context) bool {
	return m.readiness
}

func (m *mockHealthChecker) GetStatus() map[string]string {
	return m.status
}

// staticInspector implements buffer.Inspector for testing
type staticInspector struct {
	stats pkgbuffer.Stats
}

func (s staticInspector) Stats() pkgbuffer.Stats {
	return s.stats
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return response
}

func TestLivenessHandler(t *testing.T) {
	tests := []struct {
		name       string
		liveness   bool
		wantCode   int
		wantStatus string
	}{
		{name: "alive", liveness: true, wantCode: http.StatusOK, wantStatus: "alive"},
		{name: "not alive", liveness: false, wantCode: http.StatusServiceUnavailable, wantStatus: "not alive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := LivenessHandler(&mockHealthChecker{liveness: tt.liveness}, testLogger())
			w := httptest.NewRecorder()

			handler(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %s", ct)
			}
			response := decodeHealth(t, w)
			if response.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", response.Status, tt.wantStatus)
			}
			if _, err := time.Parse(time.RFC3339, response.Timestamp); err != nil {
				t.Errorf("timestamp %q is not RFC3339", response.Timestamp)
			}
		})
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name       string
		readiness  bool
		wantCode   int
		wantStatus string
	}{
		{name: "ready", readiness: true, wantCode: http.StatusOK, wantStatus: "ready"},
		{name: "not ready", readiness: false, wantCode: http.StatusServiceUnavailable, wantStatus: "not ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &mockHealthChecker{readiness: tt.readiness, status: map[string]string{"queue_depth": "3"}}
			handler := ReadinessHandler(checker, testLogger())
			w := httptest.NewRecorder()

			handler(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			response := decodeHealth(t, w)
			if response.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", response.Status, tt.wantStatus)
			}
			if response.Checks["queue_depth"] != "3" {
				t.Errorf("checks = %v", response.Checks)
			}
		})
	}
}

func TestBufferHealth_Liveness(t *testing.T) {
	tests := []struct {
		name        string
		maxLeaseAge time.Duration
		stats       pkgbuffer.Stats
		want        bool
	}{
		{name: "idle", maxLeaseAge: time.Minute, want: true},
		{name: "young lease", maxLeaseAge: time.Minute, stats: pkgbuffer.Stats{Outstanding: true, LeaseAge: time.Second}, want: true},
		{name: "stuck lease", maxLeaseAge: time.Minute, stats: pkgbuffer.Stats{Outstanding: true, LeaseAge: time.Hour}, want: false},
		{name: "check disabled", stats: pkgbuffer.Stats{Outstanding: true, LeaseAge: time.Hour}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewBufferHealth(staticInspector{stats: tt.stats}, tt.maxLeaseAge)
			if got := h.Liveness(); got != tt.want {
				t.Errorf("Liveness() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBufferHealth_Readiness(t *testing.T) {
	tests := []struct {
		name   string
		marked bool
		closed bool
		want   bool
	}{
		{name: "starting", marked: false, want: false},
		{name: "running", marked: true, want: true},
		{name: "buffer closed", marked: true, closed: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewBufferHealth(staticInspector{stats: pkgbuffer.Stats{Closed: tt.closed}}, 0)
			h.MarkReady(tt.marked)
			if got := h.Readiness(context.Background()); got != tt.want {
				t.Errorf("Readiness() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBufferHealth_GetStatus(t *testing.T) {
	buf := buffer.New(buffer.Config[string]{})
	for _, s := range []string{"a", "b", "c", "d"} {
		buf.Push(s)
	}
	h := NewBufferHealth(buf, time.Minute)

	status := h.GetStatus()
	if status["queue_depth"] != "4" || status["next_offset"] != "4" || status["outstanding"] != "false" {
		t.Errorf("idle status = %v", status)
	}
	if _, ok := status["outstanding_batch"]; ok {
		t.Error("idle status should not describe a batch")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	batch, err := buf.AcquireBatch(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}

	status = h.GetStatus()
	if status["outstanding"] != "true" || status["outstanding_batch"] != "0..2" ||
		status["outstanding_size"] != "3" || status["deliveries"] != "1" || status["queue_depth"] != "1" {
		t.Errorf("outstanding status = %v", status)
	}
	if _, err := time.ParseDuration(status["lease_age"]); err != nil {
		t.Errorf("lease_age = %q", status["lease_age"])
	}

	buf.Commit(batch)
	if err := buf.Close(); err != nil {
		t.Fatal(err)
	}
	h.MarkReady(true)
	if h.GetStatus()["closed"] != "true" || h.Readiness(context.Background()) {
		t.Error("closed buffer should report closed and not ready")
	}
}
