package lanechange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/saisandeepramavath/LaneChangeDecision/internal/core/domain"
)

// ComponentName is the name this module reports health under.
const ComponentName = "LaneChangeModule"

// Common lifecycle errors.
var (
	ErrAlreadyStarted = errors.New("module already started")
	ErrNotStarted     = errors.New("module not started")
)

// Reporter receives the module's health samples. Satisfied by the heartbeat
// emitter.
type Reporter interface {
	ReportHealth(name string, cpuPct, memPct float64, errorCount int)
}

// Module evaluates lane change feasibility against tracked nearby vehicles
// and reports its own health each cycle. An unrecoverable processing fault
// stops the evaluation loop rather than crashing the process; the monitor's
// watchdog detects the resulting silence.
type Module struct {
	reporter Reporter
	sim      *Simulator
	log      *slog.Logger
	interval time.Duration

	rng   *rand.Rand
	rngMu sync.Mutex

	mu       sync.RWMutex
	vehicles map[string]domain.VehicleData

	cycles  atomic.Int32
	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewModule creates a module reporting health to r every interval.
func NewModule(r Reporter, interval time.Duration, log *slog.Logger) *Module {
	if interval <= 0 {
		interval = time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Module{
		reporter: r,
		sim:      NewSimulator(),
		log:      log,
		interval: interval,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		vehicles: make(map[string]domain.VehicleData),
	}
}

// Start begins the evaluation loop.
func (m *Module) Start(ctx context.Context) error {
	if m.running.Swap(true) {
		return ErrAlreadyStarted
	}
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.log.Info("Lane change decision module started")
	go m.run(ctx)
	return nil
}

// Stop halts the evaluation loop.
func (m *Module) Stop() error {
	if !m.running.Swap(false) {
		return ErrNotStarted
	}
	close(m.stopCh)
	<-m.doneCh
	m.log.Info("Lane change decision module stopped")
	return nil
}

// IsRunning reports whether the evaluation loop is active.
func (m *Module) IsRunning() bool {
	return m.running.Load()
}

func (m *Module) run(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.running.Store(false)
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			if fault := m.step(); fault != nil {
				// Unrecoverable at this layer: stop self. The silence is
				// the failure signal the watchdog picks up.
				m.log.Error("Critical processing fault, stopping evaluation loop",
					"kind", fault.Kind, "detail", fault.Detail)
				m.running.Store(false)
				return
			}
		}
	}
}

// step runs one evaluation cycle: report health, advance the fault
// simulation and evaluate the lane change. Returns a fault when processing
// can no longer be trusted.
func (m *Module) step() *domain.ProcessingFault {
	m.reportHealth()
	m.sim.Tick()

	cycle := int(m.cycles.Add(1))

	// Network interference occasionally injects corrupt entries directly
	// into the tracking table.
	if m.chance(m.sim.SystemLoad() * 0.03) {
		corrupt := m.sim.CorruptedVehicleData(cycle)
		m.putVehicle(corrupt)
	}

	if m.sim.MemoryCorruption() > 100 {
		return &domain.ProcessingFault{
			Kind:   domain.FaultDataCorruption,
			Detail: fmt.Sprintf("memory corruption level %d", m.sim.MemoryCorruption()),
		}
	}

	ids := m.detectObstacles()
	if ids == nil {
		m.log.Info("Sensor data unavailable, holding lane")
		return nil
	}

	m.trackVehicles(ids)
	return m.decide(ids)
}

func (m *Module) reportHealth() {
	load := m.sim.SystemLoad()
	corruption := m.sim.MemoryCorruption()

	cpuPct := math.Min(100, load*100+m.randFloat()*20)
	memPct := math.Min(100, 45+float64(m.cycles.Load())*0.01+float64(corruption)*0.5+m.randFloat()*10)

	errorCount := 0
	if m.sim.SensorMalfunction() {
		errorCount += 2
	}
	if corruption > 50 {
		errorCount += 3
	}
	if load > highLoadThreshold {
		errorCount++
	}

	m.reporter.ReportHealth(ComponentName, cpuPct, memPct, errorCount)
}

// detectObstacles returns nearby vehicle IDs, or nil when the sensors fail
// or processing stalls past its deadline.
func (m *Module) detectObstacles() []string {
	if m.sim.SensorMalfunction() && m.chance(0.3) {
		return nil
	}

	if m.sim.ShouldDelay() {
		delay := m.sim.ProcessingDelay()
		m.log.Warn("Processing stalled under load", "delay", delay)
		select {
		case <-m.stopCh:
		case <-time.After(delay):
		}
		return nil
	}

	count := m.randIntn(5)
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		ids = append(ids, fmt.Sprintf("VEHICLE_%d", time.Now().UnixMilli()+int64(i)))
	}
	return ids
}

func (m *Module) trackVehicles(ids []string) {
	for _, id := range ids {
		data := domain.VehicleData{
			ID:       id,
			Distance: m.randFloat() * 100,
			Speed:    m.randFloat() * 60,
			Angle:    m.randFloat() * 360,
		}
		if m.sim.ShouldCorruptData() {
			data.Distance = math.NaN()
			data.Speed = math.Inf(-1)
		}
		m.putVehicle(data)
	}
}

// decide evaluates the lane change against every detected vehicle. Invalid
// safety-distance arithmetic is an unrecoverable fault.
func (m *Module) decide(ids []string) *domain.ProcessingFault {
	if len(ids) == 0 {
		m.log.Info("No nearby vehicles, holding lane")
		return nil
	}

	m.log.Info("Analyzing nearby vehicles", "count", len(ids))
	for _, id := range ids {
		data, ok := m.VehicleData(id)
		if !ok {
			continue
		}
		sd := safetyDistance(data)
		if math.IsNaN(sd) || math.IsInf(sd, 0) {
			return &domain.ProcessingFault{
				Kind:   domain.FaultArithmeticInvalid,
				Detail: fmt.Sprintf("invalid safety distance for vehicle %s", data.ID),
			}
		}
		m.log.Debug("Vehicle evaluated",
			"id", data.ID, "distance", data.Distance, "angle", data.Angle, "safety_distance", sd)
	}

	m.log.Info("Lane change evaluation complete")
	return nil
}

// safetyDistance relates distance to closing speed. Corrupted readings
// yield NaN, which decide treats as an arithmetic fault.
func safetyDistance(d domain.VehicleData) float64 {
	if d.Speed < 0 || math.IsNaN(d.Distance) {
		return math.NaN()
	}
	return d.Distance / (d.Speed + 0.1)
}

// VehicleData returns the tracked data for a vehicle, if present.
func (m *Module) VehicleData(id string) (domain.VehicleData, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.vehicles[id]
	return d, ok
}

// TrackedVehicles returns a copy of all currently tracked vehicles.
func (m *Module) TrackedVehicles() []domain.VehicleData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.VehicleData, 0, len(m.vehicles))
	for _, d := range m.vehicles {
		out = append(out, d)
	}
	return out
}

func (m *Module) putVehicle(d domain.VehicleData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[d.ID] = d
}

func (m *Module) chance(p float64) bool {
	return m.randFloat() < p
}

func (m *Module) randFloat() float64 {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.rng.Float64()
}

func (m *Module) randIntn(n int) int {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.rng.Intn(n)
}
