package controller

import (
	"github.com/sirupsen/logrus"

	"sensor-fdir/models"
	"sensor-fdir/services/alerts"
	"sensor-fdir/services/ingest"
	"sensor-fdir/utils"
)

// SensorsController builds the configured sensors and groups them by
// class. It does not start them; SimulationController owns the lifecycle.
type SensorsController struct {
	Rate     []ingest.Sensor
	Position []ingest.Sensor

	log *logrus.Entry
}

// NewSensorsController creates one source per configured sensor.
func NewSensorsController(cfg *utils.SensorsConfig, sink alerts.Sink, log *logrus.Entry, clock utils.Clock) *SensorsController {
	if log == nil {
		log = utils.DiscardLogger()
	}
	if clock == nil {
		clock = utils.SystemClock{}
	}
	sc := &SensorsController{log: log}
	opts := []ingest.Option{ingest.WithLogger(log), ingest.WithClock(clock)}

	for _, c := range cfg.Sensors.Rate {
		sc.Rate = append(sc.Rate, ingest.NewRateSensor(c, sink, opts...))
	}
	for _, c := range cfg.Sensors.Position {
		sc.Position = append(sc.Position, ingest.NewPositionSensor(c, sink, opts...))
	}
	return sc
}

// All returns every sensor, rate sensors first.
func (sc *SensorsController) All() []ingest.Sensor {
	out := make([]ingest.Sensor, 0, len(sc.Rate)+len(sc.Position))
	out = append(out, sc.Rate...)
	return append(out, sc.Position...)
}

// Of returns the sensors of one class.
func (sc *SensorsController) Of(class models.SensorClass) []ingest.Sensor {
	if class == models.ClassPosition {
		return sc.Position
	}
	return sc.Rate
}

// LogStats prints current produce/reject counters for each sensor.
func (sc *SensorsController) LogStats() {
	for _, s := range sc.All() {
		produced, rejected := s.Stats()
		sc.log.WithFields(logrus.Fields{
			"sensor":    s.Name(),
			"class":     s.Class().String(),
			"running":   s.IsRunning(),
			"faulted":   s.FaultInjected(),
			"frequency": s.Frequency(),
			"buffered":  len(s.Buffer()),
			"produced":  produced,
			"rejected":  rejected,
		}).Info("sensor stats")
	}
}
