package alerts

import "sync/atomic"

// Counter tallies alerts per severity without keeping them, so it can sit on
// the alert path of an arbitrarily long session.
type Counter struct {
	counts [len(severityNames)]atomic.Int64
	other  atomic.Int64
}

func NewCounter() *Counter { return &Counter{} }

func (c *Counter) Raise(a Alert) {
	if int(a.Severity) >= 0 && int(a.Severity) < len(c.counts) {
		c.counts[a.Severity].Add(1)
		return
	}
	c.other.Add(1)
}

// Count returns how many alerts of sev were raised.
func (c *Counter) Count(sev Severity) int64 {
	if int(sev) < 0 || int(sev) >= len(c.counts) {
		return c.other.Load()
	}
	return c.counts[sev].Load()
}
