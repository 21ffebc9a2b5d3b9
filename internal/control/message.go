package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/quality"
)

const (
	TypeChannelInfo    = "channel-info"
	TypeQualityChange  = "quality-change"
	TypeLatencyMeasure = "latency-measure"
)

var (
	ErrMalformed   = errors.New("malformed control message")
	ErrUnknownType = errors.New("unknown control message type")
)

// Message is one control-channel frame.
type Message interface {
	Type() string
	isMessage()
}

// ChannelInfo carries opaque channel metadata for the UI.
type ChannelInfo struct {
	Payload json.RawMessage
}

type QualityChange struct {
	Action quality.Action
}

// LatencyMeasure carries the sender's clock in milliseconds since the epoch.
type LatencyMeasure struct {
	Timestamp int64
}

func NewLatencyMeasure(now time.Time) LatencyMeasure {
	return LatencyMeasure{Timestamp: now.UnixMilli()}
}

// SentAt is the timestamp as a time.
func (m LatencyMeasure) SentAt() time.Time {
	return time.UnixMilli(m.Timestamp)
}

func (ChannelInfo) Type() string    { return TypeChannelInfo }
func (QualityChange) Type() string  { return TypeQualityChange }
func (LatencyMeasure) Type() string { return TypeLatencyMeasure }

func (ChannelInfo) isMessage()    {}
func (QualityChange) isMessage()  {}
func (LatencyMeasure) isMessage() {}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type qualityChangePayload struct {
	Action string `json:"action"`
}

type latencyPayload struct {
	Timestamp int64 `json:"timestamp"`
}

func Encode(msg Message) ([]byte, error) {
	var (
		payload any
		env     = envelope{Type: msg.Type()}
	)
	switch m := msg.(type) {
	case ChannelInfo:
		env.Payload = m.Payload
	case QualityChange:
		payload = qualityChangePayload{Action: string(m.Action)}
	case LatencyMeasure:
		payload = latencyPayload{Timestamp: m.Timestamp}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, msg)
	}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeChannelInfo:
		return ChannelInfo{Payload: env.Payload}, nil

	case TypeQualityChange:
		var p qualityChangePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: quality-change payload: %v", ErrMalformed, err)
		}
		action, ok := quality.ParseAction(p.Action)
		if !ok {
			return nil, fmt.Errorf("%w: quality-change action %q", ErrMalformed, p.Action)
		}
		return QualityChange{Action: action}, nil

	case TypeLatencyMeasure:
		var p latencyPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: latency-measure payload: %v", ErrMalformed, err)
		}
		if p.Timestamp <= 0 {
			return nil, fmt.Errorf("%w: latency-measure without timestamp", ErrMalformed)
		}
		return LatencyMeasure{Timestamp: p.Timestamp}, nil

	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}
