package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// =============================================================================
// Stubs
// =============================================================================

type stubPinger struct {
	err error
}

func (s *stubPinger) Health(ctx context.Context) error { return s.err }

type stubQueue struct {
	depth int64
	err   error
}

func (s *stubQueue) Len(ctx context.Context) (int64, error) { return s.depth, s.err }

// =============================================================================
// Tests
// =============================================================================

func TestMonitor_Healthy(t *testing.T) {
	monitor := NewMonitor(map[string]Pinger{"database": &stubPinger{}}, &stubQueue{depth: 3})

	report := monitor.CheckHealth(context.Background())

	if report.SystemStatus != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.SystemStatus)
	}
	if report.QueueDepth != 3 {
		t.Errorf("queue depth = %d", report.QueueDepth)
	}
}

func TestMonitor_Degraded(t *testing.T) {
	monitor := NewMonitor(map[string]Pinger{"database": &stubPinger{}}, &stubQueue{depth: 5000})

	if report := monitor.CheckHealth(context.Background()); report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}
}

func TestMonitor_Critical(t *testing.T) {
	monitor := NewMonitor(map[string]Pinger{
		"database": &stubPinger{},
		"redis":    &stubPinger{err: errors.New("connection refused")},
	}, nil)

	report := monitor.CheckHealth(context.Background())

	if report.SystemStatus != StatusCritical {
		t.Errorf("expected critical, got %s", report.SystemStatus)
	}
	if report.Components["redis"].Error != "connection refused" {
		t.Errorf("redis component = %+v", report.Components["redis"])
	}
}

func TestMonitor_Cached(t *testing.T) {
	p := &stubPinger{}
	monitor := NewMonitor(map[string]Pinger{"database": p}, nil)
	_ = monitor.CheckHealth(context.Background())

	p.err = errors.New("down")
	if report := monitor.CheckHealth(context.Background()); report.SystemStatus != StatusHealthy {
		t.Errorf("cached report expected, got %s", report.SystemStatus)
	}
}

func TestServer_Routes(t *testing.T) {
	monitor := NewMonitor(map[string]Pinger{"database": &stubPinger{err: errors.New("down")}}, nil)
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	srv := NewServer(monitor, api, 0)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("/health: expected 503, got %d", rr.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	if body["status"] != string(StatusCritical) {
		t.Errorf("/health body = %v", body)
	}

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("/metrics: expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/exports", nil))
	if rr.Code != http.StatusTeapot {
		t.Errorf("/api: expected api handler, got %d", rr.Code)
	}
}
