// Package control implements the ordered, partially reliable control channel
// that rides on a WebRTC data channel.
package control

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/quality"
)

var ErrNotOpen = errors.New("control channel is not open")

// DataChannel is the part of *webrtc.DataChannel the control channel uses.
type DataChannel interface {
	Label() string
	ReadyState() webrtc.DataChannelState
	SendText(string) error
	Close() error
}

// Handler receives decoded inbound messages.
type Handler interface {
	OnChannelInfo(payload json.RawMessage)
	OnQualityChange(action quality.Action)
	OnLatencyMeasure(m LatencyMeasure)
}

// Channel is owned by one session and used from a single goroutine.
type Channel struct {
	logger  *zap.Logger
	handler Handler
	dc      DataChannel
}

func NewChannel(handler Handler, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.L()
	}
	return &Channel{
		logger:  logger.Named("control"),
		handler: handler,
	}
}

// Attach binds the underlying data channel and returns the one it replaced, if any.
func (c *Channel) Attach(dc DataChannel) DataChannel {
	prev := c.dc
	c.dc = dc
	if prev == nil || prev == dc {
		return nil
	}
	c.logger.Debug("replacing control data channel", zap.String("label", dc.Label()))
	return prev
}

// Bound reports whether dc is the data channel currently attached.
func (c *Channel) Bound(dc DataChannel) bool {
	return dc != nil && c.dc == dc
}

func (c *Channel) Attached() bool {
	return c.dc != nil
}

func (c *Channel) IsOpen() bool {
	return c.dc != nil && c.dc.ReadyState() == webrtc.DataChannelStateOpen
}

// Send is a no-op returning ErrNotOpen unless the data channel is open.
func (c *Channel) Send(msg Message) error {
	if !c.IsOpen() {
		c.logger.Debug("control channel not open, dropping message", zap.String("type", msg.Type()))
		return ErrNotOpen
	}
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	if err := c.dc.SendText(string(data)); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Type(), err)
	}
	return nil
}

// HandleMessage decodes one inbound frame and dispatches it. Bad frames are
// logged and dropped.
func (c *Channel) HandleMessage(data []byte) {
	msg, err := Decode(data)
	if err != nil {
		c.logger.Warn("dropping control message", zap.Error(err), zap.Int("size", len(data)))
		return
	}
	if c.handler == nil {
		return
	}

	switch msg := msg.(type) {
	case ChannelInfo:
		c.handler.OnChannelInfo(msg.Payload)
	case QualityChange:
		c.handler.OnQualityChange(msg.Action)
	case LatencyMeasure:
		c.handler.OnLatencyMeasure(msg)
	}
}

func (c *Channel) Close() error {
	if c.dc == nil {
		return nil
	}
	dc := c.dc
	c.dc = nil
	return dc.Close()
}
