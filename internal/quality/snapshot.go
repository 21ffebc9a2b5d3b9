// Package quality turns transport statistics into telemetry and bitrate decisions.
package quality

import (
	"time"
)

// Counters are the cumulative receive-side statistics read from the peer connection.
type Counters struct {
	Timestamp       time.Time
	BytesReceived   uint64
	PacketsReceived uint64
	PacketsLost     uint64
	Jitter          float64 // seconds
}

// Snapshot is one telemetry sample with the values derived from the previous one.
type Snapshot struct {
	Counters

	// Bitrate in bits per second. Zero when there is no usable baseline.
	Bitrate float64
	// LostDelta is the number of packets lost since the previous sample.
	LostDelta uint64
	LossRatio float64
}

// Telemetry owns the previous sample. Only the current and previous samples are kept.
type Telemetry struct {
	smoothing float64
	prev      *Counters
}

func NewTelemetry(lossSmoothing float64) *Telemetry {
	return &Telemetry{smoothing: lossSmoothing}
}

// Sample computes a snapshot from c and makes c the new baseline.
func (t *Telemetry) Sample(c Counters) Snapshot {
	s := Snapshot{Counters: c, LostDelta: c.PacketsLost}

	if t.prev != nil {
		s.Bitrate = Bitrate(*t.prev, c)
		if c.PacketsLost >= t.prev.PacketsLost {
			s.LostDelta = c.PacketsLost - t.prev.PacketsLost
		}
	}
	s.LossRatio = LossRatio(s.LostDelta, t.smoothing)

	prev := c
	t.prev = &prev
	return s
}

// Reset drops the baseline; the next sample reports zero bitrate.
func (t *Telemetry) Reset() {
	t.prev = nil
}

func (t *Telemetry) HasBaseline() bool {
	return t.prev != nil
}

// Bitrate is (bytesDelta*8)/seconds between two samples.
// A non-positive interval or a counter that went backwards yields zero.
func Bitrate(prev, cur Counters) float64 {
	dt := cur.Timestamp.Sub(prev.Timestamp).Seconds()
	if dt <= 0 || cur.BytesReceived < prev.BytesReceived {
		return 0
	}
	return float64(cur.BytesReceived-prev.BytesReceived) * 8 / dt
}

// LossRatio is lost/(lost+smoothing).
func LossRatio(lost uint64, smoothing float64) float64 {
	denom := float64(lost) + smoothing
	if denom <= 0 {
		return 0
	}
	return float64(lost) / denom
}
