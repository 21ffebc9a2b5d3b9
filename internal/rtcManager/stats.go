package rtcManager

import (
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/quality"
)

// gatherCounters folds a stats report into receive-side counters. Bytes come
// from inbound RTP streams; when there are none yet the transport byte count
// is used so data-channel-only sessions still report traffic.
func gatherCounters(report webrtc.StatsReport, now time.Time) quality.Counters {
	c := quality.Counters{Timestamp: now}

	var (
		hasInbound     bool
		transportBytes uint64
	)

	addInbound := func(stat webrtc.InboundRTPStreamStats) {
		hasInbound = true
		c.BytesReceived += stat.BytesReceived
		c.PacketsReceived += uint64(stat.PacketsReceived)
		if stat.PacketsLost > 0 {
			c.PacketsLost += uint64(stat.PacketsLost)
		}
		if stat.Jitter > c.Jitter {
			c.Jitter = stat.Jitter
		}
	}

	for _, s := range report {
		switch stat := s.(type) {
		case webrtc.InboundRTPStreamStats:
			addInbound(stat)
		case *webrtc.InboundRTPStreamStats:
			addInbound(*stat)
		case webrtc.TransportStats:
			transportBytes += stat.BytesReceived
		case *webrtc.TransportStats:
			transportBytes += stat.BytesReceived
		}
	}

	if !hasInbound {
		c.BytesReceived = transportBytes
	}
	return c
}
