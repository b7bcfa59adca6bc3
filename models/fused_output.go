package models

import "time"

// FusedOutput is the estimate produced by one fusion cycle.
//
// Rate and Position are zero-filled when the matching validity flag is
// false. A zero vector is therefore ambiguous on its own: read the values
// through RateEstimate / PositionEstimate, or check the flags first.
type FusedOutput struct {
	Timestamp     time.Time `json:"timestamp"`
	Rate          Vec3      `json:"rate"`
	Position      Vec3      `json:"position"`
	ValidRate     bool      `json:"valid_rate"`
	ValidPosition bool      `json:"valid_position"`
}

// RateEstimate returns the fused attitude rate gated by its validity flag.
func (f FusedOutput) RateEstimate() (Vec3, bool) { return f.Rate, f.ValidRate }

// PositionEstimate returns the fused position gated by its validity flag.
func (f FusedOutput) PositionEstimate() (Vec3, bool) { return f.Position, f.ValidPosition }

// Valid is true only when both estimates are valid.
func (f FusedOutput) Valid() bool { return f.ValidRate && f.ValidPosition }

// RateRecord is the tabular form of the rate half of the output.
func (f FusedOutput) RateRecord() AxisRecord {
	return AxisRecord{TimestampNs: f.Timestamp.UnixNano(), Values: f.Rate, Valid: f.ValidRate}
}

// PositionRecord is the tabular form of the position half of the output.
func (f FusedOutput) PositionRecord() AxisRecord {
	return AxisRecord{TimestampNs: f.Timestamp.UnixNano(), Values: f.Position, Valid: f.ValidPosition}
}

// AxisRecord is one row of a per-class sink: timestamp, three axes and the
// validity flag.
type AxisRecord struct {
	TimestampNs int64 `json:"timestamp_ns"`
	Values      Vec3  `json:"values"`
	Valid       bool  `json:"valid"`
}

func (AxisRecord) CSVHeader() []string {
	return []string{"timestamp_ns", "x", "y", "z", "valid"}
}

func (r AxisRecord) CSVRow() []string {
	return []string{
		itoa64(r.TimestampNs),
		ftoa(r.Values[0], 6),
		ftoa(r.Values[1], 6),
		ftoa(r.Values[2], 6),
		btoa(r.Valid),
	}
}
