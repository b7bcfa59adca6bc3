package controller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensor-fdir/models"
	"sensor-fdir/services/alerts"
	"sensor-fdir/utils"
)

type simFixture struct {
	clock    *utils.ManualClock
	alerts   *alerts.Recorder
	imus     []*fakeSensor
	gnss     []*fakeSensor
	sim      *SimulationController
	sensors  *SensorsController
	fusion   *FusionController
	health   *HealthController
	fusedOut *memSink
}

func newSimFixture(t *testing.T) *simFixture {
	t.Helper()
	f := &simFixture{
		clock:    utils.NewManualClock(epoch),
		alerts:   alerts.NewRecorder(),
		imus:     []*fakeSensor{newFake("imu1", models.ClassRate, 100), newFake("imu2", models.ClassRate, 100)},
		gnss:     []*fakeSensor{newFake("gnss1", models.ClassPosition, 20), newFake("gnss2", models.ClassPosition, 10)},
		fusedOut: &memSink{},
	}
	f.sensors = &SensorsController{log: utils.DiscardLogger()}
	for _, s := range f.imus {
		f.sensors.Rate = append(f.sensors.Rate, s)
	}
	for _, s := range f.gnss {
		f.sensors.Position = append(f.sensors.Position, s)
	}
	f.fusion = NewFusionController(f.sensors.Rate, f.sensors.Position, 50, f.fusedOut, f.alerts, FusionWithClock(f.clock))
	f.health = NewHealthController(f.fusion, 20, f.alerts, HealthWithClock(f.clock))
	f.sim = NewSimulationController(f.sensors, f.fusion, f.health, f.alerts,
		SimulationWithClock(f.clock), SimulationWithStatsInterval(time.Second))
	t.Cleanup(func() {
		if f.sim.Running() {
			f.sim.Stop()
		}
	})
	return f
}

func (f *simFixture) all() []*fakeSensor {
	return append(append([]*fakeSensor{}, f.imus...), f.gnss...)
}

func TestSimulation_RegistersEverySensor(t *testing.T) {
	f := newSimFixture(t)
	f.health.Step()

	var names []string
	for _, r := range f.health.Records() {
		names = append(names, r.Sensor)
	}
	assert.Equal(t, []string{"imu1", "imu2", "gnss1", "gnss2"}, names)
}

func TestSimulation_StartStop(t *testing.T) {
	f := newSimFixture(t)

	f.sim.Start()
	require.True(t, f.sim.Running())
	for _, s := range f.all() {
		assert.True(t, s.IsRunning(), s.Name())
	}
	assert.True(t, f.fusion.Running())
	assert.True(t, f.health.Running())

	f.sim.Stop()
	assert.False(t, f.sim.Running())
	for _, s := range f.all() {
		assert.False(t, s.IsRunning(), s.Name())
	}
	assert.False(t, f.fusion.Running())
	assert.False(t, f.health.Running())
	assert.Empty(t, f.alerts.OfKind(alerts.KindMisuse))

	// The pipeline can be brought up again after a stop.
	f.sim.Start()
	assert.True(t, f.sim.Running())
	f.sim.Stop()
	starts, stops := f.imus[0].counts()
	assert.Equal(t, 2, starts)
	assert.Equal(t, 2, stops)
}

func TestSimulation_MisuseIsAWarningNoOp(t *testing.T) {
	f := newSimFixture(t)

	f.sim.Stop()
	assert.Equal(t, 1, f.alerts.Count(alerts.KindMisuse, simulatorSource))

	f.sim.Start()
	f.sim.Start()
	misuse := f.alerts.OfKind(alerts.KindMisuse)
	require.Len(t, misuse, 2)
	assert.Equal(t, alerts.Warning, misuse[1].Severity)
	starts, _ := f.imus[0].counts()
	assert.Equal(t, 1, starts, "second start touches nothing")

	f.sim.Stop()
	f.sim.Stop()
	assert.Equal(t, 3, f.alerts.Count(alerts.KindMisuse, simulatorSource))
	_, stops := f.imus[0].counts()
	assert.Equal(t, 1, stops)
}

func TestSimulation_PositionFaultDegradesAndRestores(t *testing.T) {
	f := newSimFixture(t)
	f.sim.Start()

	f.sim.InjectGroupFault(models.ClassPosition, true)
	for _, g := range f.gnss {
		assert.True(t, g.FaultInjected())
		assert.True(t, g.IsRunning(), "position sensors stay up while degraded")
		assert.Equal(t, DefaultDegradedPositionHz, g.Frequency())
	}
	for _, imu := range f.imus {
		assert.False(t, imu.FaultInjected())
	}

	// A second enable must not overwrite the remembered frequencies.
	f.sim.InjectGroupFault(models.ClassPosition, true)

	f.sim.InjectGroupFault(models.ClassPosition, false)
	assert.Equal(t, 20.0, f.gnss[0].Frequency())
	assert.Equal(t, 10.0, f.gnss[1].Frequency())
	for _, g := range f.gnss {
		assert.False(t, g.FaultInjected())
	}
	assert.Len(t, f.alerts.OfKind(alerts.KindFaultInjection), 3)
}

func TestSimulation_DisableWithoutEnableKeepsFrequency(t *testing.T) {
	f := newSimFixture(t)
	f.sim.InjectGroupFault(models.ClassPosition, false)
	assert.Equal(t, 20.0, f.gnss[0].Frequency())
	assert.Equal(t, 10.0, f.gnss[1].Frequency())
}

func TestSimulation_RateFaultHaltsAndResumes(t *testing.T) {
	f := newSimFixture(t)
	f.sim.Start()
	f.imus[0].push(full(epoch, 1, 1, 1))

	f.sim.InjectGroupFault(models.ClassRate, true)
	for _, imu := range f.imus {
		assert.True(t, imu.FaultInjected())
		assert.False(t, imu.IsRunning())
		assert.Empty(t, imu.Buffer())
	}
	for _, g := range f.gnss {
		assert.True(t, g.IsRunning())
	}

	f.fusion.Stop()
	f.fusion.Step()
	out, _ := f.fusion.LastOutput()
	assert.False(t, out.ValidRate)

	f.sim.InjectGroupFault(models.ClassRate, false)
	for _, imu := range f.imus {
		assert.False(t, imu.FaultInjected())
		assert.True(t, imu.IsRunning())
	}
}

func TestSimulation_StopSkipsHaltedSensors(t *testing.T) {
	f := newSimFixture(t)
	f.sim.Start()
	f.sim.InjectGroupFault(models.ClassRate, true)
	_, stops := f.imus[0].counts()
	require.Equal(t, 1, stops)

	f.sim.Stop()
	_, stops = f.imus[0].counts()
	assert.Equal(t, 1, stops)

	// Lifting the fault after the run does not restart anything.
	f.sim.InjectGroupFault(models.ClassRate, false)
	assert.False(t, f.imus[0].IsRunning())
}

func TestSimulation_StopLiftsOutstandingFaults(t *testing.T) {
	f := newSimFixture(t)
	f.sim.Start()
	f.sim.InjectGroupFault(models.ClassRate, true)
	f.sim.InjectGroupFault(models.ClassPosition, true)

	f.sim.Stop()
	for _, s := range f.all() {
		assert.False(t, s.FaultInjected(), s.name)
	}
	assert.Equal(t, 20.0, f.gnss[0].Frequency())
	assert.Equal(t, 10.0, f.gnss[1].Frequency())

	// The next run starts every rate sensor unfaulted.
	f.sim.Start()
	for _, imu := range f.imus {
		assert.True(t, imu.IsRunning())
		assert.False(t, imu.FaultInjected())
	}
}

func TestSimulation_RunForStopsAtTheEnd(t *testing.T) {
	f := newSimFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.sim.RunFor(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, f.sim.Running())
	assert.Equal(t, 2, f.alerts.Count(alerts.KindLifecycle, simulatorSource))
}

func TestSimulation_RunForWaitsForDuration(t *testing.T) {
	f := newSimFixture(t)
	done := make(chan error, 1)
	go func() { done <- f.sim.RunFor(context.Background(), 3*time.Second) }()

	// fusion, monitor, coordinator and RunFor itself all wait on the clock
	require.Eventually(t, func() bool { return f.clock.Sleepers() >= 4 }, time.Second, time.Millisecond)
	assert.True(t, f.sim.Running())
	f.clock.Advance(3 * time.Second)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RunFor did not return")
	}
	assert.False(t, f.sim.Running())
	assert.Positive(t, f.fusion.Cycles())
}

func TestSimulation_RunForWhileRunningIsRejected(t *testing.T) {
	f := newSimFixture(t)
	f.sim.Start()
	require.NoError(t, f.sim.RunFor(context.Background(), time.Second))
	assert.True(t, f.sim.Running())
	assert.Equal(t, 1, f.alerts.Count(alerts.KindMisuse, simulatorSource))
}

func TestSimulation_PositionFaultScenarioRestoresState(t *testing.T) {
	f := newSimFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.sim.RunScenario(ctx, ScenarioPositionFault, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, f.sim.Running())
	for _, g := range f.gnss {
		assert.False(t, g.FaultInjected())
	}
	assert.Equal(t, 20.0, f.gnss[0].Frequency())
	assert.Equal(t, 10.0, f.gnss[1].Frequency())
	assert.Len(t, f.alerts.OfKind(alerts.KindFaultInjection), 2)
}

func TestParseScenario(t *testing.T) {
	for _, name := range []string{"nominal", "rate-fault", "position-fault"} {
		s, err := ParseScenario(name)
		require.NoError(t, err)
		assert.Equal(t, Scenario(name), s)
	}
	_, err := ParseScenario("meltdown")
	assert.Error(t, err)
}

func TestSensorsController_FromConfig(t *testing.T) {
	cfg := utils.DefaultSensorsConfig()
	cfg.Normalize()
	sc := NewSensorsController(cfg, nil, nil, utils.NewManualClock(epoch))

	require.Len(t, sc.Rate, 3)
	require.Len(t, sc.Position, 2)
	assert.Len(t, sc.All(), 5)
	assert.Equal(t, sc.Position, sc.Of(models.ClassPosition))
	for _, s := range sc.Of(models.ClassRate) {
		assert.Equal(t, models.ClassRate, s.Class())
		assert.Equal(t, 100.0, s.Frequency())
	}
	assert.Equal(t, "gnss1", sc.Position[0].Name())
	sc.LogStats()
}
