package models

import "time"

// MaxAxes is the width of every sample vector.
const MaxAxes = 3

// Vec3 is a three-axis value. Axis meaning depends on the sensor class
// (rad/s for attitude rate, metres for position).
type Vec3 [MaxAxes]float64

// SensorClass groups redundant sensors that are fused together.
type SensorClass int

const (
	ClassRate SensorClass = iota
	ClassPosition
)

var classNames = map[SensorClass]string{
	ClassRate:     "rate",
	ClassPosition: "position",
}

func (c SensorClass) String() string {
	if n, ok := classNames[c]; ok {
		return n
	}
	return "unknown"
}

// Sample is one timestamped reading. Only the first Axes entries of Values
// carry data; the rest are zero. Samples are values and never mutated after
// creation.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Values    Vec3      `json:"values"`
	Axes      int       `json:"axes"`
}

// Complete reports whether every axis is present.
func (s Sample) Complete() bool { return s.Axes == MaxAxes }

// Vector returns the values and whether the sample is complete.
func (s Sample) Vector() (Vec3, bool) {
	if !s.Complete() {
		return Vec3{}, false
	}
	return s.Values, true
}
