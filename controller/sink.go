package controller

import (
	"errors"

	"sensor-fdir/models"
)

// Sink is the append-only destination of fused records, one stream per
// sensor class. Records arrive in cycle order.
type Sink interface {
	AppendRate(rec models.AxisRecord) error
	AppendPosition(rec models.AxisRecord) error
}

// Tee appends every record to each sink and joins their errors.
type Tee []Sink

func (t Tee) AppendRate(rec models.AxisRecord) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.AppendRate(rec))
	}
	return errors.Join(errs...)
}

func (t Tee) AppendPosition(rec models.AxisRecord) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.AppendPosition(rec))
	}
	return errors.Join(errs...)
}

type discardSink struct{}

func (discardSink) AppendRate(models.AxisRecord) error     { return nil }
func (discardSink) AppendPosition(models.AxisRecord) error { return nil }

// DiscardSink drops every record.
var DiscardSink Sink = discardSink{}
