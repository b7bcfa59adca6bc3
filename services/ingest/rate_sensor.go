package ingest

import (
	"time"

	"sensor-fdir/models"
	"sensor-fdir/services/alerts"
	"sensor-fdir/utils"
)

// RateGenerator simulates a gyro: attitude rate in rad/s around a nominal
// value with Gaussian noise on every axis.
type RateGenerator struct {
	v noisyVector
}

func NewRateGenerator(cfg utils.SensorConfig) *RateGenerator {
	return &RateGenerator{v: newNoisyVector(cfg.Nominal, cfg.Axes, cfg.Noise, cfg.Seed)}
}

func (*RateGenerator) Class() models.SensorClass { return models.ClassRate }

func (g *RateGenerator) Generate(now time.Time) models.Sample { return g.v.draw(now) }

// NewRateSensor builds a stopped IMU-style source from its config.
func NewRateSensor(cfg utils.SensorConfig, sink alerts.Sink, opts ...Option) *Source {
	return NewSource(cfg.Name, cfg.FrequencyHz, cfg.BufferSize, NewRateGenerator(cfg), sink, opts...)
}
