package signaling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/config"
)

const (
	sendBufferSize = 64
	maxMessageSize = 1 << 20
)

var (
	ErrNotConnected = errors.New("signaling socket is not open")
	ErrBackpressure = errors.New("signaling send buffer full")
)

type ClientParams struct {
	Config config.SignalingConfig
	Logger *zap.Logger
	// Dialer overrides the websocket dialer, mostly for tests.
	Dialer *websocket.Dialer

	// OnMessage is called from the read goroutine, in socket delivery order.
	OnMessage func(Message)
	// OnClose fires exactly once, after a failed dial or when an open socket closes.
	// err is nil when the client was closed locally.
	OnClose func(err error)
}

// Client is the websocket side of the signaling exchange for one session.
// It is single use: once closed it cannot be reconnected.
type Client struct {
	params ClientParams
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	conn *websocket.Conn

	send      chan []byte
	started   atomic.Bool
	open      atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(params ClientParams) *Client {
	if params.Logger == nil {
		params.Logger = zap.L()
	}
	if params.OnMessage == nil {
		params.OnMessage = func(Message) {}
	}
	if params.OnClose == nil {
		params.OnClose = func(error) {}
	}
	defaults := config.NewDefaultConfig().Signaling
	if params.Config.DialTimeout <= 0 {
		params.Config.DialTimeout = defaults.DialTimeout
	}
	if params.Config.WriteTimeout <= 0 {
		params.Config.WriteTimeout = defaults.WriteTimeout
	}
	if params.Config.PongWait <= 0 {
		params.Config.PongWait = defaults.PongWait
	}
	if params.Config.PingPeriod <= 0 || params.Config.PingPeriod >= params.Config.PongWait {
		params.Config.PingPeriod = params.Config.PongWait * 9 / 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		params: params,
		logger: params.Logger.Named("signaling"),
		ctx:    ctx,
		cancel: cancel,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// Connect dials url in the background and sends join-channel once the socket is open.
// Failures are reported through OnClose.
func (c *Client) Connect(ctx context.Context, url, channelID string) {
	if !c.started.CompareAndSwap(false, true) {
		c.logger.Warn("connect called twice, ignoring", zap.String("url", url))
		return
	}
	go c.run(ctx, url, channelID)
}

func (c *Client) run(ctx context.Context, url, channelID string) {
	cfg := c.params.Config

	dialer := c.params.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: cfg.DialTimeout,
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	// local Close aborts an in-flight dial
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	c.logger.Debug("dialing signaling server", zap.String("url", url))
	conn, _, err := dialer.DialContext(dialCtx, url, nil)
	if err != nil {
		c.shutdown(fmt.Errorf("failed to dial signaling server: %w", err))
		return
	}

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.open.Store(true)
	c.mu.Unlock()

	c.logger.Info("signaling connected", zap.String("url", url), zap.String("channelID", channelID))

	go c.writePump(conn)
	if err := c.Send(JoinChannel{ChannelID: channelID}); err != nil {
		c.shutdown(fmt.Errorf("failed to send join-channel: %w", err))
		return
	}
	c.readPump(conn)
}

// Send queues msg for the write goroutine.
func (c *Client) Send(msg Message) error {
	if !c.open.Load() {
		c.logger.Debug("dropping signaling message, socket not open", zap.String("type", msg.Type()))
		return ErrNotConnected
	}
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	default:
		c.logger.Warn("signaling send buffer full", zap.String("type", msg.Type()))
		return ErrBackpressure
	}
}

// IsOpen reports whether the socket is connected.
func (c *Client) IsOpen() bool {
	return c.open.Load()
}

// Close tears down the socket. Safe to call more than once.
func (c *Client) Close() {
	c.shutdown(nil)
}

// Done is closed after the client has shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed.Store(true)
		c.open.Store(false)
		conn := c.conn
		c.mu.Unlock()

		c.cancel()
		if conn != nil {
			if err == nil {
				_ = conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(c.params.Config.WriteTimeout),
				)
			}
			_ = conn.Close()
		}

		if err != nil {
			c.logger.Warn("signaling closed", zap.Error(err))
		} else {
			c.logger.Debug("signaling closed")
		}
		close(c.done)
		c.params.OnClose(err)
	})
}

func (c *Client) readPump(conn *websocket.Conn) {
	pongWait := c.params.Config.PongWait
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.shutdown(fmt.Errorf("signaling server closed the socket: %w", err))
			} else {
				c.shutdown(fmt.Errorf("signaling read failed: %w", err))
			}
			return
		}

		msg, err := Decode(data)
		if err != nil {
			c.logger.Warn("dropping signaling frame", zap.Error(err), zap.Int("size", len(data)))
			continue
		}
		c.params.OnMessage(msg)
	}
}

func (c *Client) writePump(conn *websocket.Conn) {
	cfg := c.params.Config
	ticker := time.NewTicker(cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return

		case data := <-c.send:
			if err := conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout)); err != nil {
				c.shutdown(fmt.Errorf("signaling set write deadline: %w", err))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.shutdown(fmt.Errorf("signaling write failed: %w", err))
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(cfg.WriteTimeout)); err != nil {
				c.shutdown(fmt.Errorf("signaling ping failed: %w", err))
				return
			}
		}
	}
}
