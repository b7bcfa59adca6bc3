package utils

import (
	"fmt"
	"time"
)

// SessionName returns a unique session directory name:
//
//	<prefix>_YYYYMMDD_HHMMSS
func SessionName(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%s", prefix, now.Format("20060102_150405"))
}

// PeriodOf converts a frequency in Hz to the fixed delay between cycles.
// Non-positive frequencies yield zero.
func PeriodOf(hz float64) time.Duration {
	if hz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / hz)
}
