package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/control"
	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/events"
	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/quality"
)

const (
	originLocal  = "local"
	originRemote = "remote"
)

// collectStats samples the current session, publishes the snapshot and
// forwards the adaptive decision to the remote side.
func (c *Client) collectStats(now time.Time) {
	snap := c.telemetry.Sample(c.session.negotiator.CollectStats(now))
	c.metrics.Observe(snap, c.latency)
	c.bus.Publish(events.StatsUpdate{
		BytesReceived: snap.BytesReceived,
		PacketsLost:   snap.PacketsLost,
		Jitter:        snap.Jitter,
		Bitrate:       snap.Bitrate,
		Latency:       c.latency,
		Timestamp:     snap.Timestamp,
	})

	action := c.adaptive.Decide(snap)
	if action == quality.ActionNone {
		return
	}
	if err := c.session.control.Send(control.QualityChange{Action: action}); err != nil {
		c.logger.Debug("quality-change not sent", zap.Error(err), zap.String("action", string(action)))
		return
	}
	c.logger.Debug("quality-change sent",
		zap.String("action", string(action)),
		zap.Float64("lossRatio", snap.LossRatio),
		zap.Float64("bitrate", snap.Bitrate),
	)
	c.metrics.IncQualityChange(action, originLocal)
}

func (c *Client) sendLatencyProbe(now time.Time) {
	if err := c.session.control.Send(control.NewLatencyMeasure(now)); err != nil {
		c.logger.Debug("latency probe not sent", zap.Error(err))
	}
}

// sessionListener receives negotiator and control channel callbacks. Both
// are only invoked from the loop, on the current session.
type sessionListener struct {
	c *Client
}

func (l sessionListener) OnLocalCandidate(candidate webrtc.ICECandidateInit) {
	l.c.bus.Publish(events.ICECandidate{Candidate: candidate})
}

func (l sessionListener) OnConnectionStateChange(state webrtc.PeerConnectionState) {
	c := l.c
	c.bus.Publish(events.ConnectionStateChange{State: state})

	if state != webrtc.PeerConnectionStateConnected {
		c.statsPoller.Stop()
		return
	}

	c.reconnect.Reset()
	c.telemetry.Reset()
	gen := c.session.generation
	if c.statsPoller.Start(func(now time.Time) {
		c.post(gen, func() { c.collectStats(now) })
	}) {
		c.logger.Debug("stats polling started", zap.Duration("interval", c.cfg.Bitrate.StatsInterval))
	}
}

func (l sessionListener) OnICEConnectionStateChange(state webrtc.ICEConnectionState) {
	l.c.bus.Publish(events.ICEConnectionStateChange{State: state})
}

func (l sessionListener) OnConnectionFailure(state webrtc.PeerConnectionState) {
	l.c.handleFailure(fmt.Errorf("peer connection %s", state))
}

func (l sessionListener) OnChannelInfo(payload json.RawMessage) {
	l.c.bus.Publish(events.ChannelInfo{Payload: payload})
}

// OnQualityChange executes a remote quality-change request locally.
func (l sessionListener) OnQualityChange(action quality.Action) {
	c := l.c
	target, changed := c.adaptive.Apply(action)
	c.metrics.IncQualityChange(action, originRemote)
	c.logger.Info("quality-change received",
		zap.String("action", string(action)),
		zap.Int("targetKbps", target),
		zap.Bool("changed", changed),
	)
	c.bus.Publish(events.QualityChanged{Action: string(action), TargetBitrate: target})
}

// OnLatencyMeasure treats the message as an echo of one of our probes.
func (l sessionListener) OnLatencyMeasure(m control.LatencyMeasure) {
	c := l.c
	rtt := c.clock.Now().Sub(m.SentAt())
	if rtt < 0 {
		c.logger.Debug("latency probe from the future, ignoring", zap.Duration("rtt", rtt))
		return
	}
	c.latency = rtt
}
