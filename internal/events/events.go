package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
)

// Event is the closed set of notifications the client publishes.
// Consumers switch on the concrete type.
type Event interface {
	// Name is the wire-style event name, e.g. "stats-update".
	Name() string
	isEvent()
}

// ErrorType classifies Error events
type ErrorType string

const (
	ErrorInitialization ErrorType = "initialization"
	ErrorSignaling      ErrorType = "signaling"
	ErrorStreaming      ErrorType = "streaming"
)

type Initialized struct {
	SessionID string
	ChannelID string
	Attempt   int
}

type ICECandidate struct {
	Candidate webrtc.ICECandidateInit
}

type ConnectionStateChange struct {
	State webrtc.PeerConnectionState
}

type ICEConnectionStateChange struct {
	State webrtc.ICEConnectionState
}

// RemoteStream carries an inbound track. StreamID groups tracks of one remote stream.
type RemoteStream struct {
	StreamID string
	Track    *webrtc.TrackRemote
}

type DataChannelOpen struct {
	Label string
}

type StatsUpdate struct {
	BytesReceived uint64
	PacketsLost   uint64
	Jitter        float64
	Bitrate       float64 // bits per second
	Latency       time.Duration
	Timestamp     time.Time
}

type Reconnecting struct {
	Attempt int
	Delay   time.Duration
}

type ConnectionFailed struct {
	Attempts int
}

type Error struct {
	Type ErrorType
	Err  error
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Type, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}

// ChannelInfo forwards channel metadata received on the control channel.
type ChannelInfo struct {
	Payload json.RawMessage
}

// QualityChanged reports a locally applied quality-change request.
type QualityChanged struct {
	Action        string
	TargetBitrate int // kbps
}

func (Initialized) Name() string              { return "initialized" }
func (ICECandidate) Name() string             { return "icecandidate" }
func (ConnectionStateChange) Name() string    { return "connectionstatechange" }
func (ICEConnectionStateChange) Name() string { return "iceconnectionstatechange" }
func (RemoteStream) Name() string             { return "remotestream" }
func (DataChannelOpen) Name() string          { return "datachannel-open" }
func (StatsUpdate) Name() string              { return "stats-update" }
func (Reconnecting) Name() string             { return "reconnecting" }
func (ConnectionFailed) Name() string         { return "connection-failed" }
func (Error) Name() string                    { return "error" }
func (ChannelInfo) Name() string              { return "channel-info" }
func (QualityChanged) Name() string           { return "quality-change" }

func (Initialized) isEvent()              {}
func (ICECandidate) isEvent()             {}
func (ConnectionStateChange) isEvent()    {}
func (ICEConnectionStateChange) isEvent() {}
func (RemoteStream) isEvent()             {}
func (DataChannelOpen) isEvent()          {}
func (StatsUpdate) isEvent()              {}
func (Reconnecting) isEvent()             {}
func (ConnectionFailed) isEvent()         {}
func (Error) isEvent()                    {}
func (ChannelInfo) isEvent()              {}
func (QualityChanged) isEvent()           {}
