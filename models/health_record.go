package models

import "time"

// HealthRecord is the monitor's view of one registered sensor.
type HealthRecord struct {
	Sensor     string      `json:"sensor"`
	Class      SensorClass `json:"class"`
	ExpectedHz float64     `json:"expected_hz"` // captured at registration
	Misses     int         `json:"misses"`      // consecutive late monitor cycles
	LastUpdate time.Time   `json:"last_update"`
}

// Stalled reports whether the miss streak reached threshold.
func (h HealthRecord) Stalled(threshold int) bool { return h.Misses >= threshold }
