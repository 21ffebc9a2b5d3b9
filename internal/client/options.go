package client

import (
	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type Option func(*Client)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock replaces the clock driving stats polling, latency probes and
// reconnect timers.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		c.clock = clk
	}
}

// WithRegisterer enables Prometheus metrics for the client.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.registerer = reg
	}
}

// WithSettingEngine sets the base pion settings, e.g. a virtual network.
func WithSettingEngine(se *webrtc.SettingEngine) Option {
	return func(c *Client) {
		c.settingEngine = se
	}
}

func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Client) {
		c.dialer = dialer
	}
}
