// Package client runs one streaming session against a signaling server and
// keeps it alive: negotiation, control channel, telemetry and reconnects.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/config"
	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/control"
	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/events"
	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/logging"
	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/quality"
	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/reconnect"
	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/rtcManager"
	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/signaling"
	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/utils"
)

// Client owns at most one live session. Every state change runs on its ops
// queue; pion, socket and timer callbacks only enqueue work there.
// Runtime failures are published on the event bus, never returned.
type Client struct {
	cfg           *config.Config
	logger        *zap.Logger
	clock         clock.Clock
	registerer    prometheus.Registerer
	settingEngine *webrtc.SettingEngine
	dialer        *websocket.Dialer

	api      *webrtc.API
	bus      *events.Bus
	loop     *utils.OpsQueue
	ctx      context.Context
	cancel   context.CancelFunc
	disposed atomic.Bool

	// owned by the loop
	started     bool
	terminal    bool
	url         string
	channelID   string
	generation  uint64
	session     *session
	reconnect   *reconnect.Manager
	telemetry   *quality.Telemetry
	adaptive    *quality.Controller
	metrics     *quality.Metrics
	statsPoller *quality.Poller
	probePoller *quality.Poller
	latency     time.Duration
}

// New validates cfg and prepares a client. Nothing touches the network until StartStreaming.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.L()
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	c.logger = c.logger.Named("client")

	api, err := rtcManager.NewAPI(rtcManager.APIParams{
		SettingEngine: c.settingEngine,
		LoggerFactory: logging.NewPionLoggerFactory(c.logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create webrtc api: %w", err)
	}
	c.api = api

	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.bus = events.NewBus(c.logger)
	c.loop = utils.NewOpsQueue(c.logger, "client")
	c.reconnect = reconnect.NewManager(cfg.Reconnect, c.clock, c.logger)
	c.telemetry = quality.NewTelemetry(cfg.Bitrate.LossSmoothing)
	c.adaptive = quality.NewController(cfg.Bitrate, c.logger)
	c.statsPoller = quality.NewPoller(c.clock, cfg.Bitrate.StatsInterval)
	c.probePoller = quality.NewPoller(c.clock, cfg.Bitrate.LatencyProbeInterval)

	c.loop.Start()
	return c, nil
}

// Subscribe registers handler for every event the client publishes. Handlers
// run on the bus goroutine and may call back into the client, Dispose included.
func (c *Client) Subscribe(handler events.Handler) (unsubscribe func()) {
	return c.bus.Subscribe(handler)
}

// StartStreaming joins channelID through the signaling server at url. Empty
// arguments fall back to the configured values. Only the first call has an effect.
func (c *Client) StartStreaming(url, channelID string) {
	if url == "" {
		url = c.cfg.Signaling.URL
	}
	if channelID == "" {
		channelID = c.cfg.Signaling.ChannelID
	}
	if !c.loop.Enqueue(func() { c.start(url, channelID) }) {
		c.logger.Warn("client disposed, not starting", zap.String("channelID", channelID))
	}
}

// SendControl sends msg on the control channel of the current session.
// It is dropped with a log line unless the channel is open.
func (c *Client) SendControl(msg control.Message) {
	c.loop.Enqueue(func() {
		if c.session == nil {
			c.logger.Debug("no session, dropping control message", zap.String("type", msg.Type()))
			return
		}
		if err := c.session.control.Send(msg); err != nil && !errors.Is(err, control.ErrNotOpen) {
			c.logger.Warn("failed to send control message", zap.Error(err))
		}
	})
}

// Dispose tears everything down: timers, then data channel, peer connection
// and signaling socket. It is idempotent and must not be called from the
// client's own loop.
func (c *Client) Dispose() {
	if !c.disposed.CompareAndSwap(false, true) {
		return
	}

	done := make(chan struct{})
	if c.loop.Enqueue(func() {
		defer close(done)
		c.teardown()
	}) {
		<-done
	}
	c.loop.Stop()
	<-c.loop.Done()

	c.cancel()
	c.bus.Close()
	c.logger.Info("client disposed")
}

func (c *Client) start(url, channelID string) {
	if c.started {
		c.logger.Warn("already streaming, ignoring start", zap.String("channelID", c.channelID))
		return
	}
	c.started = true
	c.url = url
	c.channelID = channelID

	metrics, err := quality.NewMetrics(c.registerer, channelID)
	if err != nil {
		c.logger.Warn("metrics disabled", zap.Error(err))
	}
	c.metrics = metrics

	c.connect(0)
}

// connect builds a new session and starts its signaling exchange.
func (c *Client) connect(attempt int) {
	pc, dc, err := rtcManager.NewPeerConnection(c.api, c.cfg)
	if err != nil {
		c.logger.Error("failed to initialize session", zap.Error(err))
		c.bus.Publish(events.Error{Type: events.ErrorInitialization, Err: err})
		return
	}

	c.generation++
	s := &session{
		id:         uuid.NewString(),
		generation: c.generation,
		createdAt:  c.clock.Now(),
		attempt:    attempt,
	}
	logger := c.logger.With(zap.String("sessionID", s.id))
	gen := s.generation

	s.signaling = signaling.NewClient(signaling.ClientParams{
		Config: c.cfg.Signaling,
		Logger: logger,
		Dialer: c.dialer,
		OnMessage: func(msg signaling.Message) {
			c.post(gen, func() { c.handleSignal(msg) })
		},
		OnClose: func(err error) {
			c.post(gen, func() { c.handleSignalingClosed(err) })
		},
	})
	s.negotiator = rtcManager.NewManager(rtcManager.ManagerParams{
		PeerConnection: pc,
		Signaler:       s.signaling,
		Listener:       sessionListener{c},
		Preferences: rtcManager.Preferences{
			VideoCodecs:    c.cfg.VideoCodecPreference(),
			AudioCodec:     c.cfg.Media.AudioCodec,
			MinBitrateKbps: c.cfg.Bitrate.MinKbps,
			MaxBitrateKbps: c.cfg.Bitrate.MaxKbps,
		},
		Logger: logger,
	})
	s.control = control.NewChannel(sessionListener{c}, logger)

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		c.post(gen, func() { s.negotiator.HandleLocalCandidate(candidate) })
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		c.post(gen, func() { s.negotiator.HandleConnectionState(state) })
	})
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		c.post(gen, func() { s.negotiator.HandleICEConnectionState(state) })
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.post(gen, func() { c.handleTrack(track) })
	})
	pc.OnDataChannel(func(remote *webrtc.DataChannel) {
		c.post(gen, func() { c.adoptDataChannel(remote) })
	})
	if dc != nil {
		c.bindDataChannel(s, dc)
	}

	c.session = s
	logger.Info("session created", zap.Int("attempt", attempt), zap.Uint64("generation", gen))
	c.bus.Publish(events.Initialized{SessionID: s.id, ChannelID: c.channelID, Attempt: attempt})

	s.signaling.Connect(c.ctx, c.url, c.channelID)
}

// post runs op on the loop if the session of generation gen is still current.
func (c *Client) post(gen uint64, op func()) {
	c.loop.Enqueue(func() {
		if c.session == nil || c.session.generation != gen {
			c.logger.Debug("dropping callback from stale session", zap.Uint64("generation", gen))
			return
		}
		op()
	})
}

func (c *Client) handleSignal(msg signaling.Message) {
	switch msg := msg.(type) {
	case signaling.ChannelJoined:
		c.logger.Info("joined channel", zap.String("channelID", msg.ChannelID))
	case signaling.ErrorMessage:
		err := fmt.Errorf("signaling server error: %s", msg.Message)
		c.bus.Publish(events.Error{Type: events.ErrorSignaling, Err: err})
		c.handleFailure(err)
	default:
		if err := c.session.negotiator.HandleSignal(msg); err != nil {
			c.logger.Warn("negotiation failed", zap.Error(err), zap.String("type", msg.Type()))
			c.bus.Publish(events.Error{Type: events.ErrorStreaming, Err: err})
		}
	}
}

func (c *Client) handleSignalingClosed(err error) {
	if err == nil {
		return
	}
	c.bus.Publish(events.Error{Type: events.ErrorSignaling, Err: err})
	c.handleFailure(err)
}

// handleFailure tears the session down and schedules the next attempt, or
// gives up once the attempts are used up.
func (c *Client) handleFailure(cause error) {
	if c.terminal || c.reconnect.Pending() {
		c.logger.Debug("ignoring failure", zap.Error(cause))
		return
	}

	decision := c.reconnect.Next()
	c.teardownSession()

	if decision.Exhausted {
		c.terminal = true
		c.logger.Error("giving up on reconnecting", zap.Int("attempts", decision.Attempt), zap.Error(cause))
		c.bus.Publish(events.ConnectionFailed{Attempts: decision.Attempt})
		return
	}

	c.reconnect.Schedule(decision.Delay, func() {
		c.loop.Enqueue(func() {
			if !c.reconnect.Fired() {
				return
			}
			c.connect(decision.Attempt)
		})
	})
	c.metrics.IncReconnect()
	c.bus.Publish(events.Reconnecting{Attempt: decision.Attempt, Delay: decision.Delay})
}

func (c *Client) handleTrack(track *webrtc.TrackRemote) {
	kind := track.Kind()
	if (kind == webrtc.RTPCodecTypeAudio && !c.cfg.Media.Audio) ||
		(kind == webrtc.RTPCodecTypeVideo && !c.cfg.Media.Video) {
		c.logger.Debug("ignoring disabled track kind", zap.Stringer("kind", kind))
		return
	}
	c.logger.Info("remote track",
		zap.Stringer("kind", kind),
		zap.String("streamID", track.StreamID()),
		zap.String("codec", track.Codec().MimeType),
	)
	c.bus.Publish(events.RemoteStream{StreamID: track.StreamID(), Track: track})
}

// adoptDataChannel takes a remote-opened channel with the control label as
// the control channel when none is open yet.
func (c *Client) adoptDataChannel(dc *webrtc.DataChannel) {
	if !c.cfg.DataChannel.Enabled || dc.Label() != c.cfg.DataChannel.Label {
		c.logger.Debug("ignoring remote data channel", zap.String("label", dc.Label()))
		return
	}
	if c.session.control.IsOpen() {
		return
	}
	c.bindDataChannel(c.session, dc)
}

// bindDataChannel attaches dc to the session's control channel. Callbacks of
// a channel that has since been replaced are ignored.
func (c *Client) bindDataChannel(s *session, dc *webrtc.DataChannel) {
	gen := s.generation
	if prev := s.control.Attach(dc); prev != nil {
		if err := prev.Close(); err != nil {
			c.logger.Debug("failed to close replaced control channel", zap.Error(err))
		}
	}

	dc.OnOpen(func() {
		c.post(gen, func() {
			if s.control.Bound(dc) {
				c.handleControlOpen(dc.Label())
			}
		})
	})
	dc.OnClose(func() {
		c.post(gen, func() { c.handleControlClose(s, dc) })
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		data := msg.Data
		c.post(gen, func() {
			if s.control.Bound(dc) {
				s.control.HandleMessage(data)
			}
		})
	})
}

func (c *Client) handleControlClose(s *session, dc *webrtc.DataChannel) {
	if !s.control.Bound(dc) {
		c.logger.Debug("replaced control channel closed", zap.String("label", dc.Label()))
		return
	}
	c.probePoller.Stop()
}

func (c *Client) handleControlOpen(label string) {
	c.logger.Info("control channel open", zap.String("label", label))
	c.bus.Publish(events.DataChannelOpen{Label: label})

	gen := c.session.generation
	c.probePoller.Start(func(now time.Time) {
		c.post(gen, func() { c.sendLatencyProbe(now) })
	})
}

// teardown runs on the loop during Dispose.
func (c *Client) teardown() {
	c.reconnect.Cancel()
	c.reconnect.Reset()
	c.teardownSession()
	c.latency = 0
}

func (c *Client) teardownSession() {
	c.statsPoller.Stop()
	c.probePoller.Stop()
	c.telemetry.Reset()
	if c.session == nil {
		return
	}
	s := c.session
	c.session = nil
	s.close(c.logger)
}
