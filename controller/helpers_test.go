package controller

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sensor-fdir/models"
	"sensor-fdir/utils"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeSensor is a hand-driven ingest.Sensor.
type fakeSensor struct {
	mu      sync.Mutex
	name    string
	class   models.SensorClass
	hz      float64
	running bool
	faulted bool
	samples []models.Sample
	last    time.Time
	starts  int
	stops   int
}

func newFake(name string, class models.SensorClass, hz float64) *fakeSensor {
	return &fakeSensor{name: name, class: class, hz: hz}
}

func (f *fakeSensor) Name() string              { return f.name }
func (f *fakeSensor) Class() models.SensorClass { return f.class }

func (f *fakeSensor) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
	f.starts++
}

func (f *fakeSensor) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	f.samples = nil
	f.stops++
}

func (f *fakeSensor) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeSensor) InjectFault(enable bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faulted = enable
	if enable {
		f.samples = nil
	}
}

func (f *fakeSensor) FaultInjected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.faulted
}

func (f *fakeSensor) SetFrequency(hz float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hz = hz
}

func (f *fakeSensor) Frequency() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hz
}

func (f *fakeSensor) Buffer() []models.Sample {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Sample(nil), f.samples...)
}

func (f *fakeSensor) Latest() (models.Sample, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.samples) == 0 {
		return models.Sample{}, false
	}
	return f.samples[len(f.samples)-1], true
}

func (f *fakeSensor) LastUpdate() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeSensor) Stats() (uint64, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.samples)), 0
}

// push appends a sample and moves the last-update time with it.
func (f *fakeSensor) push(s models.Sample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, s)
	f.last = s.Timestamp
}

// touch moves the last-update time without adding a sample.
func (f *fakeSensor) touch(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = t
}

func (f *fakeSensor) counts() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

func full(ts time.Time, x, y, z float64) models.Sample {
	return models.Sample{Timestamp: ts, Values: models.Vec3{x, y, z}, Axes: 3}
}

func partial(ts time.Time, axes int) models.Sample {
	return models.Sample{Timestamp: ts, Values: models.Vec3{9, 9, 0}, Axes: axes}
}

// memSink records every appended row; err makes both appends fail.
type memSink struct {
	mu       sync.Mutex
	rate     []models.AxisRecord
	position []models.AxisRecord
	err      error
}

var errDiskFull = errors.New("disk full")

func (m *memSink) AppendRate(rec models.AxisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rate = append(m.rate, rec)
	return nil
}

func (m *memSink) AppendPosition(rec models.AxisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.position = append(m.position, rec)
	return nil
}

func (m *memSink) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *memSink) rows() (rate, position int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rate), len(m.position)
}

// tick waits until n loops are parked on the clock, then advances it.
func tick(t *testing.T, clock *utils.ManualClock, n int, d time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool { return clock.Sleepers() >= n }, time.Second, time.Millisecond)
	clock.Advance(d)
}
