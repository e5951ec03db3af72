package lanechange

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/saisandeepramavath/LaneChangeDecision/internal/core/domain"
)

// =============================================================================
// Stubs
// =============================================================================

type stubReporter struct {
	mu      sync.Mutex
	reports []stubReport
}

type stubReport struct {
	name   string
	cpu    float64
	mem    float64
	errors int
}

func (r *stubReporter) ReportHealth(name string, cpuPct, memPct float64, errorCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, stubReport{name, cpuPct, memPct, errorCount})
}

func (r *stubReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

func (r *stubReporter) last() (stubReport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.reports) == 0 {
		return stubReport{}, false
	}
	return r.reports[len(r.reports)-1], true
}

// =============================================================================
// Single cycle
// =============================================================================

func TestStep_ReportsHealth(t *testing.T) {
	rep := &stubReporter{}
	m := NewModule(rep, time.Second, nil)

	if fault := m.step(); fault != nil {
		t.Fatalf("Healthy step returned fault: %v", fault)
	}

	last, ok := rep.last()
	if !ok {
		t.Fatal("Expected a health report")
	}
	if last.name != ComponentName {
		t.Errorf("Expected component %q, got %q", ComponentName, last.name)
	}
	if last.cpu < 0 || last.cpu > 100 || last.mem < 0 || last.mem > 100 {
		t.Errorf("Metrics out of range: %+v", last)
	}
}

func TestReportHealth_ErrorCountTracksFaultState(t *testing.T) {
	rep := &stubReporter{}
	m := NewModule(rep, time.Second, nil)

	m.sim.sensorMalfunction = true
	m.sim.memoryCorruption = 60
	m.sim.systemLoad = 0.9

	m.reportHealth()

	last, ok := rep.last()
	if !ok {
		t.Fatal("Expected a health report")
	}
	// sensor fault (+2), corruption over 50 (+3), high load (+1).
	if last.errors != 6 {
		t.Errorf("Expected error count 6, got %d", last.errors)
	}
}

func TestStep_CorruptionFault(t *testing.T) {
	rep := &stubReporter{}
	m := NewModule(rep, time.Second, nil)
	m.sim.memoryCorruption = 150

	fault := m.step()
	if fault == nil {
		t.Fatal("Expected a processing fault")
	}
	if fault.Kind != domain.FaultDataCorruption {
		t.Errorf("Expected data corruption fault, got %v", fault.Kind)
	}
	if rep.count() == 0 {
		t.Error("Health must be reported even on a faulting cycle")
	}
}

func TestDecide_InvalidSafetyDistanceFault(t *testing.T) {
	m := NewModule(&stubReporter{}, time.Second, nil)

	m.putVehicle(domain.VehicleData{ID: "V1", Distance: math.NaN(), Speed: 10, Angle: 90})

	fault := m.decide([]string{"V1"})
	if fault == nil {
		t.Fatal("Expected an arithmetic fault")
	}
	if fault.Kind != domain.FaultArithmeticInvalid {
		t.Errorf("Expected arithmetic fault, got %v", fault.Kind)
	}
}

func TestDecide_ValidVehiclesPass(t *testing.T) {
	m := NewModule(&stubReporter{}, time.Second, nil)

	m.putVehicle(domain.VehicleData{ID: "V1", Distance: 50, Speed: 30, Angle: 45})
	m.putVehicle(domain.VehicleData{ID: "V2", Distance: 12, Speed: 0, Angle: 180})

	if fault := m.decide([]string{"V1", "V2", "UNTRACKED"}); fault != nil {
		t.Errorf("Valid vehicles must not fault: %v", fault)
	}
	if fault := m.decide(nil); fault != nil {
		t.Errorf("Empty detection must not fault: %v", fault)
	}
}

func TestSafetyDistance(t *testing.T) {
	if sd := safetyDistance(domain.VehicleData{Distance: 50, Speed: 24.9}); math.Abs(sd-2.0) > 1e-9 {
		t.Errorf("Expected 2.0, got %v", sd)
	}
	if sd := safetyDistance(domain.VehicleData{Distance: 50, Speed: -5}); !math.IsNaN(sd) {
		t.Errorf("Negative speed must yield NaN, got %v", sd)
	}
	if sd := safetyDistance(domain.VehicleData{Distance: math.NaN(), Speed: 10}); !math.IsNaN(sd) {
		t.Errorf("NaN distance must yield NaN, got %v", sd)
	}
	// Zero speed is defined through the 0.1 floor.
	if sd := safetyDistance(domain.VehicleData{Distance: 1, Speed: 0}); math.IsNaN(sd) || math.IsInf(sd, 0) {
		t.Errorf("Zero speed must stay finite, got %v", sd)
	}
}

// =============================================================================
// Tracking
// =============================================================================

func TestTrackVehicles_LastWriteWins(t *testing.T) {
	m := NewModule(&stubReporter{}, time.Second, nil)

	m.putVehicle(domain.VehicleData{ID: "V1", Distance: 10})
	m.putVehicle(domain.VehicleData{ID: "V1", Distance: 20})

	got, ok := m.VehicleData("V1")
	if !ok || got.Distance != 20 {
		t.Errorf("Expected latest write, got %+v ok=%v", got, ok)
	}
	if len(m.TrackedVehicles()) != 1 {
		t.Errorf("Expected one tracked vehicle, got %d", len(m.TrackedVehicles()))
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestModule_StartStopLifecycle(t *testing.T) {
	m := NewModule(&stubReporter{}, 10*time.Millisecond, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := m.Start(context.Background()); err != ErrAlreadyStarted {
		t.Errorf("Second Start expected ErrAlreadyStarted, got %v", err)
	}
	if !m.IsRunning() {
		t.Error("Expected running after Start")
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := m.Stop(); err != ErrNotStarted {
		t.Errorf("Second Stop expected ErrNotStarted, got %v", err)
	}
}

func TestModule_SelfStopsOnFault(t *testing.T) {
	rep := &stubReporter{}
	m := NewModule(rep, 5*time.Millisecond, nil)
	m.sim.memoryCorruption = 150

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for m.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if m.IsRunning() {
		t.Fatal("Expected module to stop itself after a corruption fault")
	}
	// The loop is gone; Stop reports it.
	if err := m.Stop(); err != ErrNotStarted {
		t.Errorf("Stop after self-stop expected ErrNotStarted, got %v", err)
	}
	if rep.count() == 0 {
		t.Error("Expected at least one health report before the fault")
	}
}
