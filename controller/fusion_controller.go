package controller

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"sensor-fdir/models"
	"sensor-fdir/services/alerts"
	"sensor-fdir/services/ingest"
	"sensor-fdir/utils"
)

// PositionFreshness is the oldest a selected position sample may be for the
// fused position to count as valid.
const PositionFreshness = time.Second

const fusionSource = "fusion"

// FusionController periodically combines the newest sample of every sensor
// into one FusedOutput:
//   - rate: per-axis mean over the rate sensors holding a complete sample
//   - position: the complete position sample with the latest timestamp,
//     valid only while it is at most PositionFreshness old
//
// Each output goes to the Sink first and is then published as the last
// output.
type FusionController struct {
	rate     []ingest.Sensor
	position []ingest.Sensor
	sink     Sink
	alerts   alerts.Sink
	clock    utils.Clock
	log      *logrus.Entry
	freqHz   float64

	worker utils.Worker
	cycles atomic.Uint64

	// Touched only by the fusion loop.
	sinkFailing bool

	mu   sync.Mutex
	last models.FusedOutput
	have bool
}

// FusionOption customises a FusionController.
type FusionOption func(*FusionController)

func FusionWithClock(c utils.Clock) FusionOption {
	return func(fc *FusionController) { fc.clock = c }
}

func FusionWithLogger(e *logrus.Entry) FusionOption {
	return func(fc *FusionController) { fc.log = e }
}

// NewFusionController creates a stopped fusion stage running at freqHz.
func NewFusionController(rate, position []ingest.Sensor, freqHz float64, sink Sink, alertSink alerts.Sink, opts ...FusionOption) *FusionController {
	fc := &FusionController{
		rate:     rate,
		position: position,
		sink:     sink,
		alerts:   alertSink,
		clock:    utils.SystemClock{},
		freqHz:   freqHz,
	}
	if fc.freqHz <= 0 {
		fc.freqHz = 1
	}
	if fc.sink == nil {
		fc.sink = DiscardSink
	}
	if fc.alerts == nil {
		fc.alerts = alerts.Discard
	}
	for _, o := range opts {
		o(fc)
	}
	if fc.log == nil {
		fc.log = utils.DiscardLogger()
	}
	fc.log = fc.log.WithField("component", fusionSource)
	return fc
}

// Start launches the fusion loop.
func (fc *FusionController) Start() {
	if !fc.worker.Start(fc.clock, fc.period, fc.Step) {
		fc.alerts.Raise(alerts.New(alerts.Warning, alerts.KindMisuse, fusionSource, "fusion is already running"))
		return
	}
	fc.alerts.Raise(alerts.New(alerts.Info, alerts.KindLifecycle, fusionSource,
		"fusion started (%.1f Hz, %d rate sensors, %d position sensors)", fc.freqHz, len(fc.rate), len(fc.position)))
}

// Stop halts the loop and returns once no cycle is in flight.
func (fc *FusionController) Stop() {
	if !fc.worker.Stop() {
		fc.alerts.Raise(alerts.New(alerts.Warning, alerts.KindMisuse, fusionSource, "fusion is not running"))
		return
	}
	fc.alerts.Raise(alerts.New(alerts.Info, alerts.KindLifecycle, fusionSource,
		"fusion stopped (cycles=%d)", fc.cycles.Load()))
}

func (fc *FusionController) Running() bool { return fc.worker.Running() }

// Cycles returns how many outputs have been published.
func (fc *FusionController) Cycles() uint64 { return fc.cycles.Load() }

// LastOutput returns the most recently published output; false until the
// first cycle has completed.
func (fc *FusionController) LastOutput() (models.FusedOutput, bool) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.last, fc.have
}

// Step runs one fusion cycle: compute, persist, publish. The loop calls it;
// tests may call it directly while the loop is stopped.
func (fc *FusionController) Step() {
	out := fc.ComputeFusedSample()
	fc.persist(out)

	fc.mu.Lock()
	fc.last = out
	fc.have = true
	fc.mu.Unlock()
	fc.cycles.Add(1)
}

// ComputeFusedSample builds one output from the sensors' current buffers.
// It has no side effects beyond reading those buffers.
func (fc *FusionController) ComputeFusedSample() models.FusedOutput {
	out := models.FusedOutput{Timestamp: fc.clock.Now()}

	if rate, ok := meanRate(fc.rate); ok {
		out.Rate, out.ValidRate = rate, true
	} else {
		fc.log.Debug("no valid rate data")
	}

	pos, ts, ok := freshestPosition(fc.position)
	switch {
	case !ok:
		fc.log.Debug("no valid position data")
	case out.Timestamp.Sub(ts) > PositionFreshness:
		fc.log.WithField("age", out.Timestamp.Sub(ts)).Debug("position data older than freshness window")
	default:
		out.Position, out.ValidPosition = pos, true
	}
	return out
}

// meanRate averages the newest complete sample of each sensor, per axis.
// Sensors with no sample or a partial one do not contribute.
func meanRate(sensors []ingest.Sensor) (models.Vec3, bool) {
	var axes [models.MaxAxes][]float64
	for _, s := range sensors {
		v, ok := latestVector(s)
		if !ok {
			continue
		}
		for i := range axes {
			axes[i] = append(axes[i], v[i])
		}
	}
	if len(axes[0]) == 0 {
		return models.Vec3{}, false
	}
	var mean models.Vec3
	for i := range axes {
		mean[i] = stat.Mean(axes[i], nil)
	}
	return mean, true
}

// freshestPosition picks the complete sample with the latest timestamp.
// Ties keep the sensor that comes first.
func freshestPosition(sensors []ingest.Sensor) (models.Vec3, time.Time, bool) {
	var (
		best  models.Sample
		found bool
	)
	for _, s := range sensors {
		sample, ok := s.Latest()
		if !ok || !sample.Complete() {
			continue
		}
		if !found || sample.Timestamp.After(best.Timestamp) {
			best, found = sample, true
		}
	}
	return best.Values, best.Timestamp, found
}

func latestVector(s ingest.Sensor) (models.Vec3, bool) {
	sample, ok := s.Latest()
	if !ok {
		return models.Vec3{}, false
	}
	return sample.Vector()
}

// persist writes both halves of out to the sink. A failing sink is reported
// once per failure streak and never stops fusion.
func (fc *FusionController) persist(out models.FusedOutput) {
	err := errors.Join(
		fc.sink.AppendRate(out.RateRecord()),
		fc.sink.AppendPosition(out.PositionRecord()),
	)
	switch {
	case err != nil && !fc.sinkFailing:
		fc.sinkFailing = true
		fc.alerts.Raise(alerts.New(alerts.Warning, alerts.KindSinkFailure, fusionSource,
			"writing fused output failed: %v", err))
	case err != nil:
		fc.log.WithError(err).Debug("sink still failing")
	case fc.sinkFailing:
		fc.sinkFailing = false
		fc.alerts.Raise(alerts.New(alerts.Info, alerts.KindSinkFailure, fusionSource,
			"writing fused output recovered"))
	}
}

func (fc *FusionController) period() time.Duration { return utils.PeriodOf(fc.freqHz) }
