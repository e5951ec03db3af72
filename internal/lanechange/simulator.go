// Package lanechange implements the sample-producing side of the pipeline:
// a lane change decision module that feeds health metrics to the heartbeat
// emitter, and a fault simulator that manufactures the degrading conditions
// the monitor must detect.
package lanechange

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/saisandeepramavath/LaneChangeDecision/internal/core/domain"
)

// Degradation thresholds for the simulator's derived predicates.
const (
	corruptionThreshold = 75
	highLoadThreshold   = 0.8
	maxProcessingDelay  = 5 * time.Second
)

// Simulator produces a synthetic, monotonically worsening health profile.
// Each Tick raises system load, may flip the sticky sensor-malfunction flag
// and may raise the memory corruption level. It performs no I/O; it exists
// purely to drive the detection pipeline under degrading conditions.
type Simulator struct {
	mu                sync.Mutex
	rng               *rand.Rand
	cycles            int
	sensorMalfunction bool
	memoryCorruption  int
	systemLoad        float64
}

// NewSimulator creates a simulator in its zero (healthy) state.
func NewSimulator() *Simulator {
	return &Simulator{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Tick advances the simulation by one cycle. System load grows by a small
// random increment clamped to 1.0; the probability of a sensor fault grows
// with cycle count; corruption grows with probability proportional to load.
func (s *Simulator) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cycles++

	s.systemLoad += s.rng.Float64() * 0.05
	if s.systemLoad > 1.0 {
		s.systemLoad = 1.0
	}

	if s.rng.Float64() < 0.01+float64(s.cycles)*0.0001 {
		s.sensorMalfunction = true
	}

	if s.rng.Float64() < s.systemLoad*0.02 {
		s.memoryCorruption += s.rng.Intn(10)
	}
}

// Reset returns the simulator to its zero state.
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles = 0
	s.sensorMalfunction = false
	s.memoryCorruption = 0
	s.systemLoad = 0
}

// SensorMalfunction reports the sticky sensor fault flag.
func (s *Simulator) SensorMalfunction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sensorMalfunction
}

// MemoryCorruption returns the current corruption level.
func (s *Simulator) MemoryCorruption() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memoryCorruption
}

// SystemLoad returns the current load in [0, 1].
func (s *Simulator) SystemLoad() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.systemLoad
}

// ShouldCorruptData reports, probabilistically, whether tracked data should
// be corrupted this cycle. Only possible above the corruption threshold.
func (s *Simulator) ShouldCorruptData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memoryCorruption > corruptionThreshold && s.rng.Float64() < 0.1
}

// ShouldDelay reports, probabilistically, whether processing should stall
// this cycle. Only possible above the high-load threshold.
func (s *Simulator) ShouldDelay() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.systemLoad > highLoadThreshold && s.rng.Float64() < 0.2
}

// ProcessingDelay returns a bounded random stall duration.
func (s *Simulator) ProcessingDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.rng.Int63n(int64(maxProcessingDelay)))
}

// CorruptedVehicleData builds an intentionally invalid sample (out-of-range
// distance and speed, NaN angle) to exercise downstream validation.
func (s *Simulator) CorruptedVehicleData(cycle int) domain.VehicleData {
	return domain.VehicleData{
		ID:       fmt.Sprintf("CORRUPT_DATA_%d", cycle),
		Distance: -999.0,
		Speed:    -999.0,
		Angle:    math.NaN(),
	}
}
