package domain

import (
	"fmt"
	"math"
)

// VehicleData is a tracked nearby vehicle: distance in meters, speed in
// km/h, relative angle in degrees. Immutable once constructed.
type VehicleData struct {
	ID       string
	Distance float64
	Speed    float64
	Angle    float64
}

// Valid reports whether all readings are finite numbers. Corrupted sensor
// data shows up as NaN or infinite values.
func (v VehicleData) Valid() bool {
	for _, f := range []float64{v.Distance, v.Speed, v.Angle} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

func (v VehicleData) String() string {
	return fmt.Sprintf("VehicleData{id=%s, distance=%.2f, speed=%.2f, angle=%.2f}",
		v.ID, v.Distance, v.Speed, v.Angle)
}
