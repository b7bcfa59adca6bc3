// Package alerts is the leveled alert channel shared by every pipeline
// component. Components receive a Sink at construction; nothing in the
// pipeline logs alerts through a global.
package alerts

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Severity of an alert.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

var severityNames = [...]string{"info", "warning", "error"}

func (s Severity) String() string {
	if int(s) >= 0 && int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "unknown"
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Kind classifies what raised the alert.
type Kind string

const (
	KindLifecycle       Kind = "lifecycle"
	KindMisuse          Kind = "misuse"
	KindFaultInjection  Kind = "fault-injection"
	KindSensorStalled   Kind = "sensor-stalled"
	KindFusionInvalid   Kind = "fusion-invalid"
	KindFusionRecovered Kind = "fusion-recovered"
	KindSinkFailure     Kind = "sink-failure"
)

// Alert is one message on the alert channel. Source names the sensor or
// subsystem it concerns.
type Alert struct {
	ID       uuid.UUID `json:"id"`
	Time     time.Time `json:"time"`
	Severity Severity  `json:"severity"`
	Kind     Kind      `json:"kind"`
	Source   string    `json:"source"`
	Message  string    `json:"message"`
}

func (a Alert) String() string {
	return fmt.Sprintf("[%s] %s: %s", a.Severity, a.Source, a.Message)
}

// New builds an alert stamped with a fresh ID and the current time.
func New(sev Severity, kind Kind, source, format string, args ...any) Alert {
	return Alert{
		ID:       uuid.New(),
		Time:     time.Now(),
		Severity: sev,
		Kind:     kind,
		Source:   source,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Sink receives alerts. Implementations must be safe for concurrent use and
// must not block for long: sinks are called from pipeline loops.
type Sink interface {
	Raise(a Alert)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Alert)

func (f SinkFunc) Raise(a Alert) { f(a) }

// Discard drops every alert.
var Discard Sink = SinkFunc(func(Alert) {})

// Fanout delivers each alert to every sink in order.
type Fanout []Sink

func (f Fanout) Raise(a Alert) {
	for _, s := range f {
		if s != nil {
			s.Raise(a)
		}
	}
}
