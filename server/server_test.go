package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/taskflow/component"
	"github.com/kbukum/taskflow/logger"
)

func get(t *testing.T, s *Server, path string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return rec.Code, body
}

func TestHealthAggregation(t *testing.T) {
	tests := []struct {
		name       string
		statuses   []component.HealthStatus
		wantCode   int
		wantStatus string
	}{
		{name: "no components", wantCode: http.StatusOK, wantStatus: "healthy"},
		{name: "healthy", statuses: []component.HealthStatus{component.StatusHealthy}, wantCode: http.StatusOK, wantStatus: "healthy"},
		{name: "degraded", statuses: []component.HealthStatus{component.StatusHealthy, component.StatusDegraded}, wantCode: http.StatusOK, wantStatus: "degraded"},
		{name: "unhealthy", statuses: []component.HealthStatus{component.StatusDegraded, component.StatusUnhealthy}, wantCode: http.StatusServiceUnavailable, wantStatus: "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Config{}, logger.Nop())
			s.RegisterDefaultEndpoints("taskflow-worker", func(context.Context) []component.Health {
				out := make([]component.Health, len(tt.statuses))
				for i, st := range tt.statuses {
					out[i] = component.Health{Name: "c", Status: st}
				}
				return out
			})
			code, body := get(t, s, "/health")
			if code != tt.wantCode || body["status"] != tt.wantStatus || body["service"] != "taskflow-worker" {
				t.Fatalf("got %d %v", code, body)
			}
		})
	}
}

func TestVersionAndLiveness(t *testing.T) {
	s := New(Config{}, logger.Nop())
	s.RegisterDefaultEndpoints("svc", nil)
	if code, body := get(t, s, "/livez"); code != http.StatusOK || body["status"] != "alive" {
		t.Fatalf("livez: %d %v", code, body)
	}
	if code, body := get(t, s, "/version"); code != http.StatusOK || body["version"] == "" {
		t.Fatalf("version: %d %v", code, body)
	}
}

func TestRecovery(t *testing.T) {
	s := New(Config{}, logger.Nop())
	s.Engine().GET("/boom", func(*gin.Context) { panic("boom") })
	if code, body := get(t, s, "/boom"); code != http.StatusInternalServerError || body["error"] == nil {
		t.Fatalf("got %d %v", code, body)
	}
}

func TestStartStop(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"}, logger.Nop())
	s.RegisterDefaultEndpoints("svc", nil)
	if h := s.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Fatalf("expected unhealthy before start, got %v", h.Status)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	resp, err := http.Get("http://" + s.Addr() + "/livez")
	if err != nil {
		t.Fatalf("GET /livez: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if h := s.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Fatalf("expected unhealthy after stop, got %v", h.Status)
	}
}
