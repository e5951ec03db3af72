package control

import (
	"context"
	"errors"
	"log/slog"

	"github.com/saisandeepramavath/LaneChangeDecision/internal/core/config"
	"github.com/saisandeepramavath/LaneChangeDecision/internal/heartbeat"
	"github.com/saisandeepramavath/LaneChangeDecision/internal/lanechange"
)

// EmitterApp runs the reporting side: the lane change decision module
// feeding health samples into the heartbeat emitter.
type EmitterApp struct {
	emitter *heartbeat.Emitter
	module  *lanechange.Module
	log     *slog.Logger
}

// NewEmitterApp builds the emitter-side application from configuration.
func NewEmitterApp(cfg *config.AppConfig) *EmitterApp {
	log := slog.Default()

	em := heartbeat.NewEmitter(heartbeat.EmitterConfig{
		Target:           cfg.Emitter.Target,
		Interval:         cfg.Emitter.ReportingInterval(),
		ReconnectBackoff: cfg.Emitter.ReconnectBackoff(),
	}, log)

	return &EmitterApp{
		emitter: em,
		module:  lanechange.NewModule(em, cfg.Emitter.ReportingInterval(), log),
		log:     log,
	}
}

// Start starts the emitter, then the decision module feeding it.
func (a *EmitterApp) Start(ctx context.Context) error {
	if err := a.emitter.Start(ctx); err != nil {
		return err
	}
	return a.module.Start(ctx)
}

// Stop stops the module first so no further samples arrive, then the
// emitter. A module that already stopped itself on a processing fault is
// not an error here.
func (a *EmitterApp) Stop(ctx context.Context) error {
	if err := a.module.Stop(); err != nil && !errors.Is(err, lanechange.ErrNotStarted) {
		a.log.Warn("Failed to stop module", "error", err)
	}
	return a.emitter.Stop()
}
