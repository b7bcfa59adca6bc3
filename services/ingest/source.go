package ingest

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"sensor-fdir/models"
	"sensor-fdir/services/alerts"
	"sensor-fdir/utils"
)

// Sensor is the capability every simulated sensor exposes to fusion, the
// health monitor and the simulation controller.
type Sensor interface {
	Name() string
	Class() models.SensorClass

	Start()
	Stop()
	IsRunning() bool

	InjectFault(enable bool)
	FaultInjected() bool

	SetFrequency(hz float64)
	Frequency() float64

	// Buffer returns an independent copy of the buffered samples, oldest first.
	Buffer() []models.Sample
	// Latest returns the newest buffered sample.
	Latest() (models.Sample, bool)
	LastUpdate() time.Time

	Stats() (produced, rejected uint64)
}

// Generator draws one sample per cycle. Source calls it with its data lock
// held, so implementations need no locking of their own.
type Generator interface {
	Class() models.SensorClass
	Generate(now time.Time) models.Sample
}

// Option customises a Source.
type Option func(*Source)

// WithClock replaces the system clock (tests use utils.ManualClock).
func WithClock(c utils.Clock) Option { return func(s *Source) { s.clock = c } }

// WithLogger sets the debug logger; the entry is tagged with the sensor name.
func WithLogger(e *logrus.Entry) Option { return func(s *Source) { s.log = e } }

// Source is the periodic sample generator shared by every sensor class.
//
// The ring buffer, fault flag and last-update time live under one lock, so
// an insertion and its timestamp are a single unit for every reader and
// fault injection can never interleave with an in-flight insertion.
type Source struct {
	name   string
	gen    Generator
	clock  utils.Clock
	alerts alerts.Sink
	log    *logrus.Entry

	freqBits atomic.Uint64
	worker   utils.Worker

	produced atomic.Uint64
	rejected atomic.Uint64

	mu         sync.Mutex
	buf        *Ring[models.Sample]
	faulted    bool
	lastUpdate time.Time
}

var _ Sensor = (*Source)(nil)

// NewSource builds a stopped source. bufferSize is the ring capacity.
func NewSource(name string, frequencyHz float64, bufferSize int, gen Generator, sink alerts.Sink, opts ...Option) *Source {
	s := &Source{
		name:   name,
		gen:    gen,
		clock:  utils.SystemClock{},
		alerts: sink,
		buf:    NewRing[models.Sample](bufferSize),
	}
	if s.alerts == nil {
		s.alerts = alerts.Discard
	}
	if frequencyHz <= 0 {
		frequencyHz = 1
	}
	s.freqBits.Store(math.Float64bits(frequencyHz))
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = utils.DiscardLogger()
	}
	s.log = s.log.WithFields(logrus.Fields{"component": "sensor", "sensor": name})
	return s
}

func (s *Source) Name() string              { return s.name }
func (s *Source) Class() models.SensorClass { return s.gen.Class() }
func (s *Source) IsRunning() bool           { return s.worker.Running() }
func (s *Source) Frequency() float64        { return math.Float64frombits(s.freqBits.Load()) }

// Start launches the generator goroutine. Starting a running source raises
// a warning and changes nothing.
func (s *Source) Start() {
	if !s.worker.Start(s.clock, s.period, s.generate) {
		s.alerts.Raise(alerts.New(alerts.Warning, alerts.KindMisuse, s.name,
			"%s sensor %s is already running", s.Class(), s.name))
		return
	}
	s.alerts.Raise(alerts.New(alerts.Info, alerts.KindLifecycle, s.name,
		"starting %s sensor %s (%.1f Hz)", s.Class(), s.name, s.Frequency()))
}

// Stop halts generation, waits for the generator goroutine to exit, then
// clears the buffer so late readers see no stale data.
func (s *Source) Stop() {
	if !s.worker.Stop() {
		s.alerts.Raise(alerts.New(alerts.Warning, alerts.KindMisuse, s.name,
			"%s sensor %s is not running", s.Class(), s.name))
		return
	}
	s.mu.Lock()
	s.buf.Clear()
	s.mu.Unlock()

	s.alerts.Raise(alerts.New(alerts.Info, alerts.KindLifecycle, s.name,
		"stopped %s sensor %s", s.Class(), s.name))
	s.log.WithFields(logrus.Fields{
		"produced": s.produced.Load(),
		"rejected": s.rejected.Load(),
	}).Debug("generator stopped")
}

// InjectFault toggles simulated failure. Enabling clears the buffer and
// suppresses generation; disabling lets the next cycle produce again.
func (s *Source) InjectFault(enable bool) {
	s.mu.Lock()
	s.faulted = enable
	if enable {
		s.buf.Clear()
	}
	s.mu.Unlock()

	state := "disabled"
	if enable {
		state = "enabled"
	}
	s.alerts.Raise(alerts.New(alerts.Info, alerts.KindFaultInjection, s.name,
		"fault injection %s for %s sensor %s", state, s.Class(), s.name))
}

func (s *Source) FaultInjected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faulted
}

// SetFrequency changes the period used from the next cycle on. Non-positive
// values are rejected with a warning.
func (s *Source) SetFrequency(hz float64) {
	if hz <= 0 || math.IsNaN(hz) || math.IsInf(hz, 0) {
		s.alerts.Raise(alerts.New(alerts.Warning, alerts.KindMisuse, s.name,
			"ignoring invalid frequency %v Hz for sensor %s", hz, s.name))
		return
	}
	s.freqBits.Store(math.Float64bits(hz))
	s.log.WithField("frequency_hz", hz).Debug("frequency changed")
}

func (s *Source) Buffer() []models.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Snapshot()
}

func (s *Source) Latest() (models.Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Last()
}

func (s *Source) LastUpdate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdate
}

// Stats returns how many samples were inserted and how many were refused.
func (s *Source) Stats() (uint64, uint64) {
	return s.produced.Load(), s.rejected.Load()
}

// Ingest appends an externally produced sample as if the generator had
// drawn it. It refuses the sample while a fault is injected or when it is
// older than the newest buffered one.
func (s *Source) Ingest(sample models.Sample) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faulted {
		s.rejected.Add(1)
		return false
	}
	return s.insertLocked(sample)
}

func (s *Source) generate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faulted {
		return
	}
	s.insertLocked(s.gen.Generate(s.clock.Now()))
}

func (s *Source) insertLocked(sample models.Sample) bool {
	if sample.Timestamp.Before(s.lastUpdate) {
		s.rejected.Add(1)
		return false
	}
	s.buf.Push(sample)
	s.lastUpdate = sample.Timestamp
	s.produced.Add(1)
	return true
}

func (s *Source) period() time.Duration { return utils.PeriodOf(s.Frequency()) }
