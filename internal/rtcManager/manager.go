package rtcManager

import (
	"errors"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/quality"
	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/signaling"
)

var ErrClosed = errors.New("negotiator closed")

// PeerConnection is the part of *webrtc.PeerConnection the negotiator drives.
type PeerConnection interface {
	SetRemoteDescription(webrtc.SessionDescription) error
	SetLocalDescription(webrtc.SessionDescription) error
	CreateAnswer(*webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	AddICECandidate(webrtc.ICECandidateInit) error
	GetStats() webrtc.StatsReport
	Close() error
}

// Signaler sends messages to the remote peer.
type Signaler interface {
	Send(signaling.Message) error
}

// Listener receives the negotiator's outputs. Calls happen on the caller's goroutine.
type Listener interface {
	OnLocalCandidate(webrtc.ICECandidateInit)
	OnConnectionStateChange(webrtc.PeerConnectionState)
	OnICEConnectionStateChange(webrtc.ICEConnectionState)
	// OnConnectionFailure fires once, on the first failed or disconnected state.
	OnConnectionFailure(webrtc.PeerConnectionState)
}

type ManagerParams struct {
	PeerConnection PeerConnection
	Signaler       Signaler
	Listener       Listener
	Preferences    Preferences
	Logger         *zap.Logger
}

// Manager negotiates one session: it answers remote offers, applies remote
// answers, buffers early candidates and tracks the connection state. It is
// not safe for concurrent use; the owner serializes all calls.
type Manager struct {
	params ManagerParams
	logger *zap.Logger

	state           webrtc.PeerConnectionState
	iceState        webrtc.ICEConnectionState
	hasRemote       bool
	failureSignaled bool
	closed          bool
	pending         pendingCandidates
}

func NewManager(params ManagerParams) *Manager {
	if params.Logger == nil {
		params.Logger = zap.L()
	}
	return &Manager{
		params:   params,
		logger:   params.Logger.Named("negotiator"),
		state:    webrtc.PeerConnectionStateNew,
		iceState: webrtc.ICEConnectionStateNew,
	}
}

// HandleSignal applies one inbound signaling message. Offer, answer and
// candidate messages are handled; anything else is ignored.
func (m *Manager) HandleSignal(msg signaling.Message) error {
	if m.closed {
		return ErrClosed
	}
	switch msg := msg.(type) {
	case signaling.Offer:
		return m.handleOffer(msg.Description)
	case signaling.Answer:
		return m.handleAnswer(msg.Description)
	case signaling.ICECandidate:
		return m.handleRemoteCandidate(msg.Candidate)
	default:
		return nil
	}
}

func (m *Manager) handleOffer(offer webrtc.SessionDescription) error {
	if err := validateSDP(offer); err != nil {
		return fmt.Errorf("invalid offer: %w", err)
	}

	pc := m.params.PeerConnection
	if err := pc.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	m.hasRemote = true
	m.flushCandidates()

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}

	munged, err := ApplyPreferences(answer, m.params.Preferences)
	if err != nil {
		m.logger.Warn("could not apply preferences, using answer as is", zap.Error(err))
		munged = answer
	}

	if err := pc.SetLocalDescription(munged); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}

	if err := m.params.Signaler.Send(signaling.Answer{Description: munged}); err != nil {
		return fmt.Errorf("failed to send answer: %w", err)
	}
	m.logger.Debug("answer sent")
	return nil
}

func (m *Manager) handleAnswer(answer webrtc.SessionDescription) error {
	if err := validateSDP(answer); err != nil {
		return fmt.Errorf("invalid answer: %w", err)
	}
	if err := m.params.PeerConnection.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	m.hasRemote = true
	m.flushCandidates()
	return nil
}

func (m *Manager) handleRemoteCandidate(c webrtc.ICECandidateInit) error {
	if !m.hasRemote {
		m.pending.push(c)
		m.logger.Debug("buffering remote candidate", zap.Int("pending", m.pending.len()))
		return nil
	}
	if err := m.params.PeerConnection.AddICECandidate(c); err != nil {
		return fmt.Errorf("failed to add ICE candidate: %w", err)
	}
	return nil
}

func (m *Manager) flushCandidates() {
	if m.pending.len() == 0 {
		return
	}
	m.logger.Debug("applying buffered candidates", zap.Int("count", m.pending.len()))
	m.pending.drain(func(c webrtc.ICECandidateInit) {
		if err := m.params.PeerConnection.AddICECandidate(c); err != nil {
			m.logger.Warn("failed to add buffered candidate", zap.Error(err), zap.String("candidate", c.Candidate))
		}
	})
}

// HandleLocalCandidate trickles a locally gathered candidate to the remote
// peer. A nil candidate marks the end of gathering.
func (m *Manager) HandleLocalCandidate(c *webrtc.ICECandidate) {
	if m.closed {
		return
	}
	if c == nil {
		m.logger.Debug("ICE gathering complete")
		return
	}
	init := c.ToJSON()
	if err := m.params.Signaler.Send(signaling.ICECandidate{Candidate: init}); err != nil {
		m.logger.Warn("failed to send local candidate", zap.Error(err))
	}
	if m.params.Listener != nil {
		m.params.Listener.OnLocalCandidate(init)
	}
}

func (m *Manager) HandleConnectionState(state webrtc.PeerConnectionState) {
	if m.closed || state == m.state {
		return
	}
	m.logger.Info("connection state changed",
		zap.Stringer("from", m.state),
		zap.Stringer("to", state),
	)
	m.state = state

	if l := m.params.Listener; l != nil {
		l.OnConnectionStateChange(state)
	}

	switch state {
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected:
		if m.failureSignaled {
			return
		}
		m.failureSignaled = true
		if l := m.params.Listener; l != nil {
			l.OnConnectionFailure(state)
		}
	}
}

func (m *Manager) HandleICEConnectionState(state webrtc.ICEConnectionState) {
	if m.closed || state == m.iceState {
		return
	}
	m.logger.Debug("ICE connection state changed", zap.Stringer("state", state))
	m.iceState = state
	if l := m.params.Listener; l != nil {
		l.OnICEConnectionStateChange(state)
	}
}

func (m *Manager) State() webrtc.PeerConnectionState {
	return m.state
}

func (m *Manager) ICEState() webrtc.ICEConnectionState {
	return m.iceState
}

// PendingCandidates is the number of remote candidates waiting for a remote description.
func (m *Manager) PendingCandidates() int {
	return m.pending.len()
}

// CollectStats reads the peer connection's statistics.
func (m *Manager) CollectStats(now time.Time) quality.Counters {
	return gatherCounters(m.params.PeerConnection.GetStats(), now)
}

// Close closes the peer connection. Later calls and callbacks are no-ops.
func (m *Manager) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.pending.clear()
	if err := m.params.PeerConnection.Close(); err != nil {
		return fmt.Errorf("failed to close peer connection: %w", err)
	}
	return nil
}
