package controller

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"sensor-fdir/models"
	"sensor-fdir/services/alerts"
	"sensor-fdir/services/ingest"
	"sensor-fdir/utils"
)

// StallThreshold is the miss streak at which a sensor is reported stalled.
const StallThreshold = 3

const healthSource = "fdir"

// FusedSource is what the health monitor reads from the fusion stage.
type FusedSource interface {
	LastOutput() (models.FusedOutput, bool)
}

type registryOp struct {
	add        ingest.Sensor
	expectedHz float64
	remove     string
}

type healthEntry struct {
	sensor ingest.Sensor
	record models.HealthRecord
}

// HealthController is the FDIR monitor. Every cycle it:
//   - counts, per running sensor, consecutive cycles in which the last
//     update is older than the sensor's expected interval, and raises a
//     sensor-stalled error on every cycle the streak is at or above
//     StallThreshold (level-triggered)
//   - raises one fusion-invalid error when the fused output turns invalid
//     and one fusion-recovered info when it turns valid again
//     (edge-triggered)
//
// The registry is owned by the monitor cycle. AddSensor and RemoveSensor
// queue commands that the next cycle applies.
type HealthController struct {
	fused  FusedSource
	alerts alerts.Sink
	clock  utils.Clock
	log    *logrus.Entry
	freqHz float64

	worker utils.Worker

	opsMu sync.Mutex
	ops   []registryOp

	// Owned by the monitor cycle.
	entries      map[string]*healthEntry
	order        []string
	fusedInvalid bool

	statusMu sync.Mutex
	status   []models.HealthRecord
}

// HealthOption customises a HealthController.
type HealthOption func(*HealthController)

func HealthWithClock(c utils.Clock) HealthOption {
	return func(hc *HealthController) { hc.clock = c }
}

func HealthWithLogger(e *logrus.Entry) HealthOption {
	return func(hc *HealthController) { hc.log = e }
}

// NewHealthController creates a stopped monitor running at freqHz. fused
// may be nil, in which case only sensor liveness is checked.
func NewHealthController(fused FusedSource, freqHz float64, alertSink alerts.Sink, opts ...HealthOption) *HealthController {
	hc := &HealthController{
		fused:   fused,
		alerts:  alertSink,
		clock:   utils.SystemClock{},
		freqHz:  freqHz,
		entries: map[string]*healthEntry{},
	}
	if hc.freqHz <= 0 {
		hc.freqHz = 1
	}
	if hc.alerts == nil {
		hc.alerts = alerts.Discard
	}
	for _, o := range opts {
		o(hc)
	}
	if hc.log == nil {
		hc.log = utils.DiscardLogger()
	}
	hc.log = hc.log.WithField("component", healthSource)
	return hc
}

// Start launches the monitor loop.
func (hc *HealthController) Start() {
	if !hc.worker.Start(hc.clock, hc.period, hc.Step) {
		hc.alerts.Raise(alerts.New(alerts.Warning, alerts.KindMisuse, healthSource, "monitor is already running"))
		return
	}
	hc.alerts.Raise(alerts.New(alerts.Info, alerts.KindLifecycle, healthSource, "monitor started (%.1f Hz)", hc.freqHz))
}

// Stop halts the loop and returns once no cycle is in flight.
func (hc *HealthController) Stop() {
	if !hc.worker.Stop() {
		hc.alerts.Raise(alerts.New(alerts.Warning, alerts.KindMisuse, healthSource, "monitor is not running"))
		return
	}
	hc.alerts.Raise(alerts.New(alerts.Info, alerts.KindLifecycle, healthSource, "monitor stopped"))
}

func (hc *HealthController) Running() bool { return hc.worker.Running() }

// AddSensor registers s, expecting samples at its current frequency. A
// sensor registered under an existing name replaces it. The change is
// visible from the next cycle.
func (hc *HealthController) AddSensor(s ingest.Sensor) {
	hc.opsMu.Lock()
	hc.ops = append(hc.ops, registryOp{add: s, expectedHz: s.Frequency()})
	hc.opsMu.Unlock()
	hc.log.WithField("sensor", s.Name()).Info("adding sensor")
}

// RemoveSensor deregisters the named sensor from the next cycle on.
func (hc *HealthController) RemoveSensor(name string) {
	hc.opsMu.Lock()
	hc.ops = append(hc.ops, registryOp{remove: name})
	hc.opsMu.Unlock()
	hc.log.WithField("sensor", name).Info("removing sensor")
}

// Records returns the health records as of the end of the last cycle.
func (hc *HealthController) Records() []models.HealthRecord {
	hc.statusMu.Lock()
	defer hc.statusMu.Unlock()
	out := make([]models.HealthRecord, len(hc.status))
	copy(out, hc.status)
	return out
}

// Step runs one monitor cycle. The loop calls it; tests may call it
// directly while the loop is stopped.
func (hc *HealthController) Step() {
	hc.applyOps()

	now := hc.clock.Now()
	for _, name := range hc.order {
		hc.checkSensor(now, hc.entries[name])
	}
	hc.checkFusion()
	hc.publish()
}

func (hc *HealthController) applyOps() {
	hc.opsMu.Lock()
	ops := hc.ops
	hc.ops = nil
	hc.opsMu.Unlock()

	for _, op := range ops {
		if op.add != nil {
			name := op.add.Name()
			if _, exists := hc.entries[name]; !exists {
				hc.order = append(hc.order, name)
			}
			hc.entries[name] = &healthEntry{
				sensor: op.add,
				record: models.HealthRecord{
					Sensor:     name,
					Class:      op.add.Class(),
					ExpectedHz: op.expectedHz,
				},
			}
			continue
		}
		if _, exists := hc.entries[op.remove]; !exists {
			continue
		}
		delete(hc.entries, op.remove)
		for i, n := range hc.order {
			if n == op.remove {
				hc.order = append(hc.order[:i], hc.order[i+1:]...)
				break
			}
		}
	}
}

func (hc *HealthController) checkSensor(now time.Time, e *healthEntry) {
	if !e.sensor.IsRunning() {
		return
	}
	rec := &e.record
	rec.LastUpdate = e.sensor.LastUpdate()

	// whole milliseconds only: a real loop's period runs slightly over nominal
	if now.Sub(rec.LastUpdate).Truncate(time.Millisecond) > utils.PeriodOf(rec.ExpectedHz) {
		rec.Misses++
		hc.log.WithFields(logrus.Fields{"sensor": rec.Sensor, "misses": rec.Misses}).Debug("sensor late")
	} else {
		rec.Misses = 0
	}

	if rec.Stalled(StallThreshold) {
		hc.alerts.Raise(alerts.New(alerts.Error, alerts.KindSensorStalled, rec.Sensor,
			"sensor %s did not provide any output for %d consecutive nominal measurement intervals",
			rec.Sensor, rec.Misses))
	}
}

func (hc *HealthController) checkFusion() {
	if hc.fused == nil {
		return
	}
	out, ok := hc.fused.LastOutput()
	if !ok {
		return
	}
	switch {
	case !out.Valid() && !hc.fusedInvalid:
		hc.fusedInvalid = true
		hc.alerts.Raise(alerts.New(alerts.Error, alerts.KindFusionInvalid, healthSource,
			"fusion has invalid data (rate valid=%t, position valid=%t)", out.ValidRate, out.ValidPosition))
	case out.Valid() && hc.fusedInvalid:
		hc.fusedInvalid = false
		hc.alerts.Raise(alerts.New(alerts.Info, alerts.KindFusionRecovered, healthSource,
			"fusion data valid again"))
	}
}

func (hc *HealthController) publish() {
	records := make([]models.HealthRecord, 0, len(hc.order))
	for _, name := range hc.order {
		records = append(records, hc.entries[name].record)
	}
	hc.statusMu.Lock()
	hc.status = records
	hc.statusMu.Unlock()
}

func (hc *HealthController) period() time.Duration { return utils.PeriodOf(hc.freqHz) }
