// Package control wires configuration into running monitor-side and
// emitter-side applications and manages their lifecycles.
package control

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/saisandeepramavath/LaneChangeDecision/internal/core/config"
	"github.com/saisandeepramavath/LaneChangeDecision/internal/core/domain"
	"github.com/saisandeepramavath/LaneChangeDecision/internal/fallback"
	"github.com/saisandeepramavath/LaneChangeDecision/internal/heartbeat"
	"github.com/saisandeepramavath/LaneChangeDecision/internal/lanechange"
)

// MonitorApp runs the failure-detection side: the heartbeat monitor with
// its watchdog, the escalation handler and the HTTP observation server.
type MonitorApp struct {
	monitor  *heartbeat.Monitor
	server   *heartbeat.Server
	fallback *fallback.Handler
	log      *slog.Logger

	statusInterval time.Duration
	stopStatus     context.CancelFunc
}

// NewMonitorApp builds the monitor-side application from configuration.
// The escalation handler is constructed here and passed explicitly to
// every component that signals or queries fallback state.
func NewMonitorApp(cfg *config.AppConfig) *MonitorApp {
	log := slog.Default()
	fb := fallback.NewHandler(log)

	mon := heartbeat.NewMonitor(heartbeat.MonitorConfig{
		ListenAddr:       cfg.Monitor.ListenAddr,
		HeartbeatTimeout: cfg.Monitor.HeartbeatTimeout(),
		CPUThreshold:     cfg.Monitor.CPUThreshold,
		MemThreshold:     cfg.Monitor.MemThreshold,
		ErrorThreshold:   cfg.Monitor.ErrorThreshold,
		StatsEveryN:      int64(cfg.Monitor.StatsEveryN),
	}, fb, log)

	return &MonitorApp{
		monitor:        mon,
		server:         heartbeat.NewServer(mon, fb, cfg.Server.Port),
		fallback:       fb,
		log:            log,
		statusInterval: cfg.Monitor.StatusReportInterval(),
	}
}

// Fallback exposes the shared escalation handler.
func (a *MonitorApp) Fallback() *fallback.Handler { return a.fallback }

// Monitor exposes the heartbeat monitor.
func (a *MonitorApp) Monitor() *heartbeat.Monitor { return a.monitor }

// Start starts the monitor, the HTTP server and the periodic status report.
func (a *MonitorApp) Start(ctx context.Context) error {
	if err := a.monitor.Start(ctx); err != nil {
		return err
	}

	go func() {
		if err := a.server.Start(); err != nil && err != http.ErrServerClosed {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	statusCtx, cancel := context.WithCancel(ctx)
	a.stopStatus = cancel
	go a.statusLoop(statusCtx)

	return nil
}

// Stop stops all monitor-side components.
func (a *MonitorApp) Stop(ctx context.Context) error {
	if a.stopStatus != nil {
		a.stopStatus()
	}
	if err := a.monitor.Stop(); err != nil {
		a.log.Warn("Failed to stop monitor", "error", err)
	}
	return a.server.Stop(ctx)
}

// statusLoop periodically logs a system status report: fallback state plus
// the health verdict for the known components.
func (a *MonitorApp) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(a.statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.fallback.LogStatus()
			stats := a.monitor.GetStats()
			a.log.Info("System status report",
				"lane_change_module_healthy", a.monitor.IsComponentHealthy(lanechange.ComponentName),
				"system_healthy", a.monitor.IsComponentHealthy(domain.SystemComponent),
				"total_heartbeats", stats.TotalHeartbeats,
				"missed_heartbeats", stats.MissedHeartbeats)
		}
	}
}
