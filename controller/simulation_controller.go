package controller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"sensor-fdir/models"
	"sensor-fdir/services/alerts"
	"sensor-fdir/services/ingest"
	"sensor-fdir/utils"
)

// DefaultDegradedPositionHz is the rate position sensors are forced to while
// a position fault is injected.
const DefaultDegradedPositionHz = 2.0

const simulatorSource = "simulator"

const (
	stateIdle int32 = iota
	stateStarting
	stateRunning
	stateStopping
)

// SimulationController owns the sensors, the fusion stage and the health
// monitor, and sequences their lifecycle.
//
// Start brings up sensors, then fusion, then the monitor. Stop tears down in
// the same order so consumers never read from producers that are half shut
// down, then joins the coordinator goroutine that reports stats.
type SimulationController struct {
	sensors *SensorsController
	fusion  *FusionController
	health  *HealthController
	alerts  alerts.Sink
	clock   utils.Clock
	log     *logrus.Entry

	degradedHz    float64
	statsInterval time.Duration

	state       atomic.Int32
	coordinator utils.Worker

	faultMu sync.Mutex
	savedHz map[string]float64
	halted  map[string]bool
}

// SimulationOption customises a SimulationController.
type SimulationOption func(*SimulationController)

func SimulationWithClock(c utils.Clock) SimulationOption {
	return func(s *SimulationController) { s.clock = c }
}

func SimulationWithLogger(e *logrus.Entry) SimulationOption {
	return func(s *SimulationController) { s.log = e }
}

// SimulationWithDegradedHz sets the frequency forced on position sensors
// during a position fault.
func SimulationWithDegradedHz(hz float64) SimulationOption {
	return func(s *SimulationController) { s.degradedHz = hz }
}

// SimulationWithStatsInterval sets how often the coordinator logs stats.
func SimulationWithStatsInterval(d time.Duration) SimulationOption {
	return func(s *SimulationController) { s.statsInterval = d }
}

// NewSimulationController wires the components together and registers every
// sensor with the health monitor.
func NewSimulationController(sensors *SensorsController, fusion *FusionController, health *HealthController, alertSink alerts.Sink, opts ...SimulationOption) *SimulationController {
	sc := &SimulationController{
		sensors:       sensors,
		fusion:        fusion,
		health:        health,
		alerts:        alertSink,
		clock:         utils.SystemClock{},
		degradedHz:    DefaultDegradedPositionHz,
		statsInterval: 5 * time.Second,
		savedHz:       map[string]float64{},
		halted:        map[string]bool{},
	}
	if sc.alerts == nil {
		sc.alerts = alerts.Discard
	}
	for _, o := range opts {
		o(sc)
	}
	if sc.log == nil {
		sc.log = utils.DiscardLogger()
	}
	sc.log = sc.log.WithField("component", simulatorSource)

	for _, s := range sensors.All() {
		health.AddSensor(s)
	}
	return sc
}

// Running reports whether the simulation is up.
func (sc *SimulationController) Running() bool { return sc.state.Load() == stateRunning }

func (sc *SimulationController) Sensors() *SensorsController { return sc.sensors }
func (sc *SimulationController) Fusion() *FusionController   { return sc.fusion }
func (sc *SimulationController) Monitor() *HealthController  { return sc.health }

// Start brings the pipeline up. It is a warning no-op unless the
// simulation is idle.
func (sc *SimulationController) Start() {
	if !sc.state.CompareAndSwap(stateIdle, stateStarting) {
		sc.alerts.Raise(alerts.New(alerts.Warning, alerts.KindMisuse, simulatorSource, "simulation is already running"))
		return
	}
	sc.alerts.Raise(alerts.New(alerts.Info, alerts.KindLifecycle, simulatorSource, "starting simulation"))

	for _, s := range sc.sensors.All() {
		s.Start()
	}
	sc.fusion.Start()
	sc.health.Start()
	sc.coordinator.Start(sc.clock, func() time.Duration { return sc.statsInterval }, sc.reportStats)

	sc.state.Store(stateRunning)
}

// Stop tears the pipeline down: sensors, fusion, monitor, coordinator. Group
// faults still injected are lifted so the next Start begins nominal. It is a
// warning no-op unless the simulation is running.
func (sc *SimulationController) Stop() {
	if !sc.state.CompareAndSwap(stateRunning, stateStopping) {
		sc.alerts.Raise(alerts.New(alerts.Warning, alerts.KindMisuse, simulatorSource, "simulation is not running"))
		return
	}
	sc.alerts.Raise(alerts.New(alerts.Info, alerts.KindLifecycle, simulatorSource, "stopping simulation"))

	for _, s := range sc.sensors.All() {
		if s.IsRunning() {
			s.Stop()
		}
	}
	sc.fusion.Stop()
	sc.health.Stop()
	sc.coordinator.Stop()

	sc.liftFaults()

	sc.state.Store(stateIdle)
}

// InjectGroupFault toggles fault injection on every sensor of class.
//
// Rate sensors are hard-stopped while the fault is on, so fusion loses its
// rate contributors; lifting the fault restarts the ones it halted if the
// simulation is still running. Position sensors keep running but are forced
// to the degraded frequency, and get their own frequency back on disable.
func (sc *SimulationController) InjectGroupFault(class models.SensorClass, enable bool) {
	state := "disabled"
	if enable {
		state = "enabled"
	}
	sc.alerts.Raise(alerts.New(alerts.Info, alerts.KindFaultInjection, simulatorSource,
		"%s fault injection %s", class, state))

	for _, s := range sc.sensors.Of(class) {
		s.InjectFault(enable)
		switch {
		case class == models.ClassPosition && enable:
			sc.degrade(s)
		case class == models.ClassPosition:
			sc.restore(s)
		case enable:
			sc.halt(s)
		default:
			sc.resume(s)
		}
	}
}

func (sc *SimulationController) liftFaults() {
	for _, s := range sc.sensors.All() {
		if s.FaultInjected() {
			s.InjectFault(false)
		}
		sc.restore(s)
	}
	sc.faultMu.Lock()
	clear(sc.halted)
	sc.faultMu.Unlock()
}

func (sc *SimulationController) halt(s ingest.Sensor) {
	if !s.IsRunning() {
		return
	}
	s.Stop()
	sc.faultMu.Lock()
	sc.halted[s.Name()] = true
	sc.faultMu.Unlock()
}

func (sc *SimulationController) resume(s ingest.Sensor) {
	sc.faultMu.Lock()
	wasHalted := sc.halted[s.Name()]
	delete(sc.halted, s.Name())
	sc.faultMu.Unlock()
	if wasHalted && sc.Running() && !s.IsRunning() {
		s.Start()
	}
}

func (sc *SimulationController) degrade(s ingest.Sensor) {
	sc.faultMu.Lock()
	if _, saved := sc.savedHz[s.Name()]; !saved {
		sc.savedHz[s.Name()] = s.Frequency()
	}
	sc.faultMu.Unlock()
	s.SetFrequency(sc.degradedHz)
}

func (sc *SimulationController) restore(s ingest.Sensor) {
	sc.faultMu.Lock()
	hz, saved := sc.savedHz[s.Name()]
	delete(sc.savedHz, s.Name())
	sc.faultMu.Unlock()
	if saved {
		s.SetFrequency(hz)
	}
}

// RunFor starts the simulation, lets it run for d (or until ctx is done)
// and stops it.
func (sc *SimulationController) RunFor(ctx context.Context, d time.Duration) error {
	if sc.state.Load() != stateIdle {
		sc.alerts.Raise(alerts.New(alerts.Warning, alerts.KindMisuse, simulatorSource,
			"simulation must be stopped before a timed run"))
		return nil
	}
	sc.Start()
	sc.clock.Sleep(ctx, d)
	sc.Stop()
	return ctx.Err()
}

// Scenario is a canned run from the interactive menu.
type Scenario string

const (
	ScenarioNominal       Scenario = "nominal"
	ScenarioRateFault     Scenario = "rate-fault"
	ScenarioPositionFault Scenario = "position-fault"
)

// ParseScenario validates a scenario name.
func ParseScenario(s string) (Scenario, error) {
	switch Scenario(s) {
	case ScenarioNominal, ScenarioRateFault, ScenarioPositionFault:
		return Scenario(s), nil
	}
	return "", fmt.Errorf("unknown scenario %q (want %s, %s or %s)", s,
		ScenarioNominal, ScenarioRateFault, ScenarioPositionFault)
}

// RunScenario runs a canned scenario for d. Fault scenarios inject the
// class fault right after start and lift it just before stop.
func (sc *SimulationController) RunScenario(ctx context.Context, scenario Scenario, d time.Duration) error {
	var class models.SensorClass
	switch scenario {
	case ScenarioNominal:
		return sc.RunFor(ctx, d)
	case ScenarioRateFault:
		class = models.ClassRate
	case ScenarioPositionFault:
		class = models.ClassPosition
	default:
		return fmt.Errorf("unknown scenario %q", scenario)
	}

	if sc.state.Load() != stateIdle {
		sc.alerts.Raise(alerts.New(alerts.Warning, alerts.KindMisuse, simulatorSource,
			"simulation must be stopped before running a scenario"))
		return nil
	}
	sc.Start()
	sc.InjectGroupFault(class, true)
	sc.clock.Sleep(ctx, d)
	sc.InjectGroupFault(class, false)
	sc.Stop()
	return ctx.Err()
}

func (sc *SimulationController) reportStats() {
	sc.sensors.LogStats()
	out, ok := sc.fusion.LastOutput()
	sc.log.WithFields(logrus.Fields{
		"fusion_cycles":  sc.fusion.Cycles(),
		"have_output":    ok,
		"valid_rate":     out.ValidRate,
		"valid_position": out.ValidPosition,
	}).Info("pipeline stats")
}
