// Package fallback implements the safety-response state machine activated
// when the failure-detection pipeline loses confidence in the remote
// component. It models what the vehicle would command (lane holding, speed
// reduction, hazards, brake preparation) as declarative flags and log
// events; it performs no physical actuation.
package fallback

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"

	"github.com/saisandeepramavath/LaneChangeDecision/internal/metrics"
)

const (
	StateInactive = "inactive"
	StateActive   = "active"

	EventActivate   = "activate"
	EventDeactivate = "deactivate"
)

// emergencyActivations is the activation count at which the handler enters
// the one-way emergency sub-state.
const emergencyActivations = 3

// SafetySystems holds the declarative safety-response flags engaged while
// the handler is active.
type SafetySystems struct {
	LaneHold       bool `json:"lane_hold"`
	SpeedReduction bool `json:"speed_reduction"`
	Hazards        bool `json:"hazards"`
	BrakePrep      bool `json:"brake_prep"`
}

// Status is a point-in-time snapshot of the handler state.
type Status struct {
	Active          bool          `json:"active"`
	EmergencyMode   bool          `json:"emergency_mode"`
	SafetySystems   SafetySystems `json:"safety_systems"`
	ActivationCount int           `json:"activation_count"`
	LastReason      string        `json:"last_reason"`
}

// Handler is the process-wide escalation service. It is constructed once
// and passed explicitly to every component that signals or queries
// fallback status; there is no ambient global lookup.
//
// Invariants: emergency mode is monotone (never cleared by Deactivate),
// the activation count only increases, and Activate is a no-op while
// already active.
type Handler struct {
	machine *fsm.FSM
	log     *slog.Logger

	mu             sync.RWMutex
	lastReason     string
	lastActivation time.Time
	safety         SafetySystems

	activationCount atomic.Int32
	emergency       atomic.Bool
}

// NewHandler creates an inactive escalation handler.
func NewHandler(log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{log: log}

	// The FSM serializes transitions, so the enter_active callback runs
	// exactly once per Inactive->Active edge regardless of concurrent
	// callers; an activate event while already active is rejected as an
	// invalid transition.
	h.machine = fsm.NewFSM(
		StateInactive,
		fsm.Events{
			{Name: EventActivate, Src: []string{StateInactive}, Dst: StateActive},
			{Name: EventDeactivate, Src: []string{StateActive}, Dst: StateInactive},
		},
		fsm.Callbacks{
			"enter_" + StateActive: func(_ context.Context, e *fsm.Event) {
				h.onActivate(e)
			},
			"enter_" + StateInactive: func(_ context.Context, e *fsm.Event) {
				h.onDeactivate()
			},
		},
	)
	return h
}

// Activate transitions the handler to Active, engages the safety systems
// and records the reason. No-op while already active.
func (h *Handler) Activate(reason string) {
	if err := h.machine.Event(context.Background(), EventActivate, reason); err != nil {
		return
	}
}

// Deactivate disengages the safety systems and returns to Inactive. No-op
// while already inactive. Emergency mode, once entered, persists.
func (h *Handler) Deactivate() {
	if err := h.machine.Event(context.Background(), EventDeactivate); err != nil {
		return
	}
}

func (h *Handler) onActivate(e *fsm.Event) {
	reason := "system failure detected"
	if len(e.Args) > 0 {
		if r, ok := e.Args[0].(string); ok && r != "" {
			reason = r
		}
	}

	h.mu.Lock()
	h.lastReason = reason
	h.lastActivation = time.Now()
	h.safety = SafetySystems{LaneHold: true, SpeedReduction: true, Hazards: true, BrakePrep: true}
	h.mu.Unlock()

	count := h.activationCount.Add(1)
	metrics.FallbackActivations.Inc()

	h.log.Warn("Fallback activated", "count", count, "reason", reason)
	h.log.Info("Safety systems engaged",
		"lane_hold", true, "speed_reduction", true, "hazards", true, "brake_prep", true)

	if count >= emergencyActivations {
		h.enterEmergencyMode()
	}
}

func (h *Handler) onDeactivate() {
	h.mu.Lock()
	h.safety = SafetySystems{}
	h.mu.Unlock()

	h.log.Info("Fallback deactivated, resuming normal operation")
}

// enterEmergencyMode is one-way: once entered it persists for the life of
// the process, flagging the run for manual intervention.
func (h *Handler) enterEmergencyMode() {
	if h.emergency.Swap(true) {
		return
	}
	metrics.EmergencyMode.Set(1)

	h.log.Error("Emergency mode activated: multiple system failures detected")
	h.log.Error("Emergency protocol",
		"controlled_stop", true,
		"traffic_management_notified", true,
		"passenger_notification", true,
		"manual_control_requested", true)
}

// IsActive reports whether the handler is currently active.
func (h *Handler) IsActive() bool {
	return h.machine.Current() == StateActive
}

// IsEmergencyMode reports whether emergency mode has ever been entered.
func (h *Handler) IsEmergencyMode() bool {
	return h.emergency.Load()
}

// ActivationCount returns the number of Inactive->Active edges so far.
func (h *Handler) ActivationCount() int {
	return int(h.activationCount.Load())
}

// LastReason returns the reason recorded at the most recent activation.
func (h *Handler) LastReason() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastReason
}

// TimeSinceLastActivation returns the elapsed time since the most recent
// activation. ok is false if the handler has never activated.
func (h *Handler) TimeSinceLastActivation() (time.Duration, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.lastActivation.IsZero() {
		return 0, false
	}
	return time.Since(h.lastActivation), true
}

// GetStatus returns a snapshot of the current handler state.
func (h *Handler) GetStatus() Status {
	h.mu.RLock()
	safety := h.safety
	reason := h.lastReason
	h.mu.RUnlock()

	return Status{
		Active:          h.IsActive(),
		EmergencyMode:   h.emergency.Load(),
		SafetySystems:   safety,
		ActivationCount: h.ActivationCount(),
		LastReason:      reason,
	}
}

// LogStatus emits the current state as a structured log line.
func (h *Handler) LogStatus() {
	st := h.GetStatus()
	h.log.Info("Fallback status",
		"active", st.Active,
		"emergency_mode", st.EmergencyMode,
		"safety_systems_engaged", st.SafetySystems.LaneHold,
		"activations", st.ActivationCount,
		"last_reason", st.LastReason)
}
