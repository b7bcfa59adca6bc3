package alerts

import "sync"

// Recorder keeps every alert it receives. Tests use it to assert on what a
// component raised.
type Recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Raise(a Alert) {
	r.mu.Lock()
	r.alerts = append(r.alerts, a)
	r.mu.Unlock()
}

// Alerts returns a copy of everything recorded so far.
func (r *Recorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Alert, len(r.alerts))
	copy(out, r.alerts)
	return out
}

// OfKind returns the recorded alerts of one kind, in arrival order.
func (r *Recorder) OfKind(kind Kind) []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Alert
	for _, a := range r.alerts {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// Count returns how many alerts of kind concern source. An empty source
// matches every source.
func (r *Recorder) Count(kind Kind, source string) int {
	n := 0
	for _, a := range r.OfKind(kind) {
		if source == "" || a.Source == source {
			n++
		}
	}
	return n
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.alerts = nil
	r.mu.Unlock()
}
