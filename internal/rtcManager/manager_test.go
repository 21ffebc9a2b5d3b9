package rtcManager

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/signaling"
)

type fakePeerConnection struct {
	calls      []string
	candidates []string
	local      *webrtc.SessionDescription
	stats      webrtc.StatsReport
	addErr     map[string]error
	closed     int
}

func (f *fakePeerConnection) SetRemoteDescription(sd webrtc.SessionDescription) error {
	f.calls = append(f.calls, "setRemote:"+sd.Type.String())
	return nil
}

func (f *fakePeerConnection) SetLocalDescription(sd webrtc.SessionDescription) error {
	f.calls = append(f.calls, "setLocal:"+sd.Type.String())
	f.local = &sd
	return nil
}

func (f *fakePeerConnection) CreateAnswer(*webrtc.AnswerOptions) (webrtc.SessionDescription, error) {
	f.calls = append(f.calls, "createAnswer")
	return sampleAnswer(), nil
}

func (f *fakePeerConnection) AddICECandidate(c webrtc.ICECandidateInit) error {
	f.calls = append(f.calls, "addCandidate")
	f.candidates = append(f.candidates, c.Candidate)
	return f.addErr[c.Candidate]
}

func (f *fakePeerConnection) GetStats() webrtc.StatsReport {
	return f.stats
}

func (f *fakePeerConnection) Close() error {
	f.closed++
	return nil
}

type fakeSignaler struct {
	sent []signaling.Message
	err  error
}

func (f *fakeSignaler) Send(m signaling.Message) error {
	f.sent = append(f.sent, m)
	return f.err
}

type fakeListener struct {
	local    []webrtc.ICECandidateInit
	states   []webrtc.PeerConnectionState
	ice      []webrtc.ICEConnectionState
	failures []webrtc.PeerConnectionState
}

func (f *fakeListener) OnLocalCandidate(c webrtc.ICECandidateInit) { f.local = append(f.local, c) }
func (f *fakeListener) OnConnectionStateChange(s webrtc.PeerConnectionState) {
	f.states = append(f.states, s)
}
func (f *fakeListener) OnICEConnectionStateChange(s webrtc.ICEConnectionState) {
	f.ice = append(f.ice, s)
}
func (f *fakeListener) OnConnectionFailure(s webrtc.PeerConnectionState) {
	f.failures = append(f.failures, s)
}

func newTestManager() (*Manager, *fakePeerConnection, *fakeSignaler, *fakeListener) {
	pc := &fakePeerConnection{}
	sig := &fakeSignaler{}
	l := &fakeListener{}
	m := NewManager(ManagerParams{
		PeerConnection: pc,
		Signaler:       sig,
		Listener:       l,
		Preferences:    samplePreferences(),
		Logger:         zap.NewNop(),
	})
	return m, pc, sig, l
}

func remoteCandidate(i int) signaling.ICECandidate {
	return signaling.ICECandidate{Candidate: webrtc.ICECandidateInit{
		Candidate: fmt.Sprintf("candidate:%d 1 udp 2130706431 10.0.0.%d 5000 typ host", i, i),
	}}
}

func TestManager_OfferAnswerWithEarlyCandidates(t *testing.T) {
	m, pc, sig, _ := newTestManager()

	for i := 1; i <= 3; i++ {
		require.NoError(t, m.HandleSignal(remoteCandidate(i)))
	}
	require.Equal(t, 3, m.PendingCandidates())
	require.Empty(t, pc.calls)

	offer := sampleAnswer()
	offer.Type = webrtc.SDPTypeOffer
	require.NoError(t, m.HandleSignal(signaling.Offer{Description: offer}))

	require.Equal(t, []string{
		"setRemote:offer",
		"addCandidate", "addCandidate", "addCandidate",
		"createAnswer",
		"setLocal:answer",
	}, pc.calls)
	require.Equal(t, []string{
		remoteCandidate(1).Candidate.Candidate,
		remoteCandidate(2).Candidate.Candidate,
		remoteCandidate(3).Candidate.Candidate,
	}, pc.candidates)
	require.Zero(t, m.PendingCandidates())

	// the answer sent is the one set locally, with preferences applied
	require.Len(t, sig.sent, 1)
	answer, ok := sig.sent[0].(signaling.Answer)
	require.True(t, ok)
	require.Equal(t, pc.local.SDP, answer.Description.SDP)
	require.Contains(t, answer.Description.SDP, "x-google-max-bitrate=2500")

	// later candidates go straight through
	require.NoError(t, m.HandleSignal(remoteCandidate(4)))
	require.Len(t, pc.candidates, 4)
	require.Zero(t, m.PendingCandidates())
}

func TestManager_BufferedCandidateFailureDoesNotDropOthers(t *testing.T) {
	m, pc, _, _ := newTestManager()
	pc.addErr = map[string]error{remoteCandidate(2).Candidate.Candidate: errors.New("bad candidate")}

	for i := 1; i <= 3; i++ {
		require.NoError(t, m.HandleSignal(remoteCandidate(i)))
	}
	require.NoError(t, m.HandleSignal(signaling.Answer{Description: sampleAnswer()}))
	require.Len(t, pc.candidates, 3)
}

func TestManager_InvalidOfferRejected(t *testing.T) {
	m, pc, sig, _ := newTestManager()
	err := m.HandleSignal(signaling.Offer{Description: webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}})

	var verr *SDPValidationError
	require.ErrorAs(t, err, &verr)
	require.Empty(t, pc.calls)
	require.Empty(t, sig.sent)
}

func TestManager_AnswerSendFailure(t *testing.T) {
	m, _, sig, _ := newTestManager()
	sig.err = signaling.ErrNotConnected

	offer := sampleAnswer()
	offer.Type = webrtc.SDPTypeOffer
	err := m.HandleSignal(signaling.Offer{Description: offer})
	require.ErrorIs(t, err, signaling.ErrNotConnected)
}

func TestManager_ConnectionStates(t *testing.T) {
	m, _, _, l := newTestManager()
	require.Equal(t, webrtc.PeerConnectionStateNew, m.State())

	m.HandleConnectionState(webrtc.PeerConnectionStateConnecting)
	m.HandleConnectionState(webrtc.PeerConnectionStateConnecting)
	m.HandleConnectionState(webrtc.PeerConnectionStateConnected)
	m.HandleConnectionState(webrtc.PeerConnectionStateDisconnected)
	m.HandleConnectionState(webrtc.PeerConnectionStateFailed)

	require.Equal(t, []webrtc.PeerConnectionState{
		webrtc.PeerConnectionStateConnecting,
		webrtc.PeerConnectionStateConnected,
		webrtc.PeerConnectionStateDisconnected,
		webrtc.PeerConnectionStateFailed,
	}, l.states)
	require.Equal(t, []webrtc.PeerConnectionState{webrtc.PeerConnectionStateDisconnected}, l.failures)

	m.HandleICEConnectionState(webrtc.ICEConnectionStateChecking)
	m.HandleICEConnectionState(webrtc.ICEConnectionStateChecking)
	require.Equal(t, []webrtc.ICEConnectionState{webrtc.ICEConnectionStateChecking}, l.ice)
}

func TestManager_Close(t *testing.T) {
	m, pc, sig, l := newTestManager()
	require.NoError(t, m.HandleSignal(remoteCandidate(1)))

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	require.Equal(t, 1, pc.closed)
	require.Zero(t, m.PendingCandidates())

	require.ErrorIs(t, m.HandleSignal(remoteCandidate(2)), ErrClosed)
	m.HandleConnectionState(webrtc.PeerConnectionStateClosed)
	m.HandleLocalCandidate(nil)
	require.Empty(t, l.states)
	require.Empty(t, sig.sent)
}

func TestGatherCounters(t *testing.T) {
	now := time.Unix(1700000000, 0)

	report := webrtc.StatsReport{
		"video": webrtc.InboundRTPStreamStats{BytesReceived: 1000, PacketsReceived: 10, PacketsLost: 2, Jitter: 0.01},
		"audio": &webrtc.InboundRTPStreamStats{BytesReceived: 500, PacketsReceived: 5, PacketsLost: -1, Jitter: 0.03},
		"transport": webrtc.TransportStats{BytesReceived: 99999},
	}
	c := gatherCounters(report, now)
	require.Equal(t, now, c.Timestamp)
	require.EqualValues(t, 1500, c.BytesReceived)
	require.EqualValues(t, 15, c.PacketsReceived)
	require.EqualValues(t, 2, c.PacketsLost)
	require.InDelta(t, 0.03, c.Jitter, 1e-12)

	c = gatherCounters(webrtc.StatsReport{"transport": webrtc.TransportStats{BytesReceived: 4096}}, now)
	require.EqualValues(t, 4096, c.BytesReceived)
}
