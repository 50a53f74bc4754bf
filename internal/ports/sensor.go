package ports

import (
	"math"
)

// Gyroscope defines how to read a heading
// This is a PORT - adapters (NavX, ADXRS, Mock) will implement it
type Gyroscope interface {
	// Angle returns the accumulated, non-wrapping angle in degrees
	Angle() float64

	// WrappedAngle returns the angle wrapped into [0, 360)
	WrappedAngle() float64
}

// BinarySensor defines how to read an on/off sensor (limit switch, line break)
type BinarySensor interface {
	// Get reports whether the sensor is triggered
	Get() bool
}

// WrapAngle wraps degrees into [0, 360)
func WrapAngle(degrees float64) float64 {
	wrapped := math.Mod(degrees, 360)
	if wrapped < 0 {
		wrapped += 360
	}
	// -0.0 and tiny negative remainders can round up to exactly 360
	if wrapped >= 360 {
		wrapped = 0
	}
	return wrapped
}
