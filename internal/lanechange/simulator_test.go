package lanechange

import (
	"math"
	"testing"
)

func TestSimulator_ZeroStateIsHealthy(t *testing.T) {
	s := NewSimulator()

	if s.SystemLoad() != 0 || s.MemoryCorruption() != 0 || s.SensorMalfunction() {
		t.Errorf("Fresh simulator must be healthy: load=%v corruption=%d sensor=%v",
			s.SystemLoad(), s.MemoryCorruption(), s.SensorMalfunction())
	}
	if s.ShouldCorruptData() {
		t.Error("Corruption predicate must be false below the threshold")
	}
	if s.ShouldDelay() {
		t.Error("Delay predicate must be false below the load threshold")
	}
}

func TestSimulator_TickDegradesMonotonically(t *testing.T) {
	s := NewSimulator()

	prevLoad := 0.0
	prevCorruption := 0
	for i := 0; i < 500; i++ {
		s.Tick()

		load := s.SystemLoad()
		if load < prevLoad {
			t.Fatalf("System load decreased at cycle %d: %v -> %v", i, prevLoad, load)
		}
		if load > 1.0 {
			t.Fatalf("System load exceeded 1.0 at cycle %d: %v", i, load)
		}
		prevLoad = load

		corruption := s.MemoryCorruption()
		if corruption < prevCorruption {
			t.Fatalf("Corruption decreased at cycle %d: %d -> %d", i, prevCorruption, corruption)
		}
		prevCorruption = corruption
	}

	// 500 ticks of +[0,0.05) increments saturate load with overwhelming
	// probability.
	if prevLoad < 0.9 {
		t.Errorf("Expected load near saturation after 500 ticks, got %v", prevLoad)
	}
}

func TestSimulator_SensorFaultIsSticky(t *testing.T) {
	s := NewSimulator()
	s.sensorMalfunction = true

	for i := 0; i < 100; i++ {
		s.Tick()
		if !s.SensorMalfunction() {
			t.Fatalf("Sensor fault cleared at cycle %d", i)
		}
	}
}

func TestSimulator_Reset(t *testing.T) {
	s := NewSimulator()
	for i := 0; i < 100; i++ {
		s.Tick()
	}

	s.Reset()

	if s.SystemLoad() != 0 || s.MemoryCorruption() != 0 || s.SensorMalfunction() || s.cycles != 0 {
		t.Errorf("Reset did not restore zero state: load=%v corruption=%d sensor=%v cycles=%d",
			s.SystemLoad(), s.MemoryCorruption(), s.SensorMalfunction(), s.cycles)
	}
}

func TestSimulator_ProcessingDelayBounded(t *testing.T) {
	s := NewSimulator()

	for i := 0; i < 100; i++ {
		d := s.ProcessingDelay()
		if d < 0 || d >= maxProcessingDelay {
			t.Fatalf("Delay out of bounds: %v", d)
		}
	}
}

func TestSimulator_CorruptedVehicleDataInvalid(t *testing.T) {
	s := NewSimulator()

	data := s.CorruptedVehicleData(7)

	if data.Valid() {
		t.Errorf("Corrupted data must fail validation: %+v", data)
	}
	if !math.IsNaN(data.Angle) || data.Distance != -999 || data.Speed != -999 {
		t.Errorf("Unexpected corrupted sample: %+v", data)
	}
	if data.ID != "CORRUPT_DATA_7" {
		t.Errorf("Unexpected corrupted ID %q", data.ID)
	}
}
