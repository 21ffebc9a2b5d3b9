package signaling

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

const (
	TypeOffer         = "offer"
	TypeAnswer        = "answer"
	TypeICECandidate  = "ice-candidate"
	TypeJoinChannel   = "join-channel"
	TypeChannelJoined = "channel-joined"
	TypeError         = "error"
)

var (
	ErrMalformed   = errors.New("malformed signaling message")
	ErrUnknownType = errors.New("unknown signaling message type")
)

// Message is one signaling frame. The set of implementations is closed.
type Message interface {
	Type() string
	isMessage()
}

type Offer struct {
	Description webrtc.SessionDescription
}

type Answer struct {
	Description webrtc.SessionDescription
}

type ICECandidate struct {
	Candidate webrtc.ICECandidateInit
}

type JoinChannel struct {
	ChannelID string
}

type ChannelJoined struct {
	ChannelID string
}

// ErrorMessage is an error frame sent by the signaling server.
type ErrorMessage struct {
	Message string
}

func (Offer) Type() string         { return TypeOffer }
func (Answer) Type() string        { return TypeAnswer }
func (ICECandidate) Type() string  { return TypeICECandidate }
func (JoinChannel) Type() string   { return TypeJoinChannel }
func (ChannelJoined) Type() string { return TypeChannelJoined }
func (ErrorMessage) Type() string  { return TypeError }

func (Offer) isMessage()         {}
func (Answer) isMessage()        {}
func (ICECandidate) isMessage()  {}
func (JoinChannel) isMessage()   {}
func (ChannelJoined) isMessage() {}
func (ErrorMessage) isMessage()  {}

// envelope is the JSON shape on the wire: a type tag plus the payload field for that type.
type envelope struct {
	Type      string                     `json:"type"`
	Offer     *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer    *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	ChannelID string                     `json:"channelId,omitempty"`
	Error     string                     `json:"error,omitempty"`
	Message   string                     `json:"message,omitempty"`
}

func Encode(msg Message) ([]byte, error) {
	env := envelope{Type: msg.Type()}
	switch m := msg.(type) {
	case Offer:
		sd := m.Description
		env.Offer = &sd
	case Answer:
		sd := m.Description
		env.Answer = &sd
	case ICECandidate:
		c := m.Candidate
		env.Candidate = &c
	case JoinChannel:
		env.ChannelID = m.ChannelID
	case ChannelJoined:
		env.ChannelID = m.ChannelID
	case ErrorMessage:
		env.Error = m.Message
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, msg)
	}
	return json.Marshal(env)
}

func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeOffer:
		if env.Offer == nil || env.Offer.SDP == "" {
			return nil, fmt.Errorf("%w: offer without description", ErrMalformed)
		}
		sd := *env.Offer
		sd.Type = webrtc.SDPTypeOffer
		return Offer{Description: sd}, nil
	case TypeAnswer:
		if env.Answer == nil || env.Answer.SDP == "" {
			return nil, fmt.Errorf("%w: answer without description", ErrMalformed)
		}
		sd := *env.Answer
		sd.Type = webrtc.SDPTypeAnswer
		return Answer{Description: sd}, nil
	case TypeICECandidate:
		if env.Candidate == nil {
			return nil, fmt.Errorf("%w: ice-candidate without candidate", ErrMalformed)
		}
		return ICECandidate{Candidate: *env.Candidate}, nil
	case TypeJoinChannel:
		return JoinChannel{ChannelID: env.ChannelID}, nil
	case TypeChannelJoined:
		return ChannelJoined{ChannelID: env.ChannelID}, nil
	case TypeError:
		text := env.Error
		if text == "" {
			text = env.Message
		}
		return ErrorMessage{Message: text}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}
