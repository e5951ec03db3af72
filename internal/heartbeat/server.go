package heartbeat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saisandeepramavath/LaneChangeDecision/internal/fallback"
)

// Server exposes HTTP endpoints for health observation. The endpoints are
// observational only; the heartbeat wire protocol is the contract.
type Server struct {
	monitor  *Monitor
	fallback *fallback.Handler
	server   *http.Server
}

// healthReport is the /health response body.
type healthReport struct {
	Status     string                     `json:"status"`
	Stats      Stats                      `json:"stats"`
	Components map[string]ComponentStatus `json:"components"`
	Fallback   fallback.Status            `json:"fallback"`
}

// NewServer creates a health server over the given monitor and fallback
// handler.
func NewServer(monitor *Monitor, fb *fallback.Handler, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor:  monitor,
		fallback: fb,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := healthReport{
		Stats:      s.monitor.GetStats(),
		Components: s.monitor.Report(),
		Fallback:   s.fallback.GetStatus(),
	}

	// Worst case wins.
	switch {
	case report.Fallback.EmergencyMode:
		report.Status = "emergency"
	case report.Stats.CriticalFailure || report.Fallback.Active:
		report.Status = "critical"
	default:
		report.Status = "healthy"
		for _, c := range report.Components {
			if !c.Healthy {
				report.Status = "degraded"
				break
			}
		}
	}

	code := http.StatusOK
	if report.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}
