package ingest

import (
	"time"

	"sensor-fdir/models"
	"sensor-fdir/services/alerts"
	"sensor-fdir/utils"
)

// PositionGenerator simulates a GNSS receiver: a position fix in metres
// around a nominal point with Gaussian noise on every axis.
type PositionGenerator struct {
	v noisyVector
}

func NewPositionGenerator(cfg utils.SensorConfig) *PositionGenerator {
	return &PositionGenerator{v: newNoisyVector(cfg.Nominal, cfg.Axes, cfg.Noise, cfg.Seed)}
}

func (*PositionGenerator) Class() models.SensorClass { return models.ClassPosition }

func (g *PositionGenerator) Generate(now time.Time) models.Sample { return g.v.draw(now) }

// NewPositionSensor builds a stopped GNSS-style source from its config.
func NewPositionSensor(cfg utils.SensorConfig, sink alerts.Sink, opts ...Option) *Source {
	return NewSource(cfg.Name, cfg.FrequencyHz, cfg.BufferSize, NewPositionGenerator(cfg), sink, opts...)
}
