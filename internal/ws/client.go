// Package ws provides the websocket connection layer for exchange
// realtime feeds.
package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/lxzan/gws"
	"github.com/rs/zerolog"
)

// Config holds configuration options for a websocket client.
type Config struct {
	// URL is the websocket server endpoint to connect to.
	URL string
	// ReconnectEnabled determines whether automatic reconnection is enabled.
	ReconnectEnabled bool
	// ReconnectBaseWait is the wait before the first reconnection attempt.
	ReconnectBaseWait time.Duration
	// ReconnectMaxWait caps the exponential backoff between attempts.
	ReconnectMaxWait time.Duration
	// PingInterval is the keepalive ping cadence.
	PingInterval time.Duration
	// PongWait is the grace period for a pong before the connection is
	// considered dead.
	PongWait time.Duration
	// BufferSize is the capacity of the message channel.
	BufferSize int
}

// Client manages one websocket connection with reconnection support.
// All received frames are delivered on a single channel; topic
// demultiplexing is the exchange layer's job.
type Client struct {
	config  Config
	state   *State
	conn    *gws.Conn
	handler *eventHandler
	logger  zerolog.Logger

	mu                sync.Mutex
	messages          chan []byte
	connectedChan     chan struct{}
	stopChan          chan struct{}
	wg                sync.WaitGroup
	reconnectAttempts int
}

type eventHandler struct {
	client *Client
}

// NewClient creates a websocket client. Zero-valued config fields get
// defaults.
func NewClient(config Config, logger zerolog.Logger) *Client {
	if config.ReconnectBaseWait == 0 {
		config.ReconnectBaseWait = 1 * time.Second
	}
	if config.ReconnectMaxWait == 0 {
		config.ReconnectMaxWait = 30 * time.Second
	}
	if config.PingInterval == 0 {
		config.PingInterval = 10 * time.Second
	}
	if config.PongWait == 0 {
		config.PongWait = 20 * time.Second
	}
	if config.BufferSize == 0 {
		config.BufferSize = 100
	}

	c := &Client{
		config:        config,
		state:         &State{},
		messages:      make(chan []byte, config.BufferSize),
		connectedChan: make(chan struct{}),
		stopChan:      make(chan struct{}),
		logger:        logger,
	}
	c.state.Store(StateDisconnected)
	c.handler = &eventHandler{client: c}
	return c
}

func (h *eventHandler) OnOpen(socket *gws.Conn) {
	h.client.state.Store(StateConnected)

	h.client.mu.Lock()
	h.client.reconnectAttempts = 0
	select {
	case <-h.client.connectedChan:
	default:
		close(h.client.connectedChan)
	}
	h.client.mu.Unlock()

	h.client.logger.Info().
		Str("url", h.client.config.URL).
		Msg("websocket connected")

	_ = socket.SetDeadline(time.Now().Add(h.client.config.PingInterval + h.client.config.PongWait))
}

func (h *eventHandler) OnClose(socket *gws.Conn, err error) {
	h.client.state.Store(StateDisconnected)

	h.client.mu.Lock()
	h.client.connectedChan = make(chan struct{})
	h.client.mu.Unlock()

	h.client.logger.Warn().
		Err(err).
		Str("url", h.client.config.URL).
		Msg("websocket disconnected")

	if h.client.config.ReconnectEnabled {
		select {
		case <-h.client.stopChan:
			return
		default:
			go h.client.attemptReconnect()
		}
	}
}

func (h *eventHandler) OnPing(socket *gws.Conn, payload []byte) {
	_ = socket.SetDeadline(time.Now().Add(h.client.config.PingInterval + h.client.config.PongWait))
	_ = socket.WritePong(nil)
}

func (h *eventHandler) OnPong(socket *gws.Conn, payload []byte) {
	_ = socket.SetDeadline(time.Now().Add(h.client.config.PingInterval + h.client.config.PongWait))
}

func (h *eventHandler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	data := message.Bytes()
	if len(data) == 0 {
		return
	}

	// message buffer is reused by gws; hand out a copy
	frame := make([]byte, len(data))
	copy(frame, data)

	select {
	case <-h.client.stopChan:
	case h.client.messages <- frame:
	default:
		h.client.logger.Warn().Msg("message buffer full, dropping frame")
	}
}

// Connect establishes the websocket connection.
func (c *Client) Connect(ctx context.Context) error {
	if !c.state.CompareAndSwap(StateDisconnected, StateConnecting) {
		current := c.state.Load()
		if current == StateConnected {
			return nil
		}
		return fmt.Errorf("invalid state for connect: %s", current)
	}

	socket, _, err := gws.NewClient(c.handler, &gws.ClientOption{
		Addr: c.config.URL,
	})
	if err != nil {
		c.state.Store(StateDisconnected)
		return fmt.Errorf("connect websocket: %w", err)
	}

	c.mu.Lock()
	c.conn = socket
	connected := c.connectedChan
	c.mu.Unlock()

	c.wg.Go(func() {
		socket.ReadLoop()
	})

	select {
	case <-connected:
		return nil
	case <-ctx.Done():
		_ = socket.NetConn().Close()
		c.state.Store(StateDisconnected)
		return ctx.Err()
	case <-c.stopChan:
		_ = socket.NetConn().Close()
		c.state.Store(StateClosed)
		return fmt.Errorf("client stopped")
	}
}

// Messages returns the channel delivering raw received frames.
func (c *Client) Messages() <-chan []byte {
	return c.messages
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	return c.state.Load()
}

// IsConnected reports whether the websocket has an active connection.
func (c *Client) IsConnected() bool {
	return c.state.Load() == StateConnected
}

// WriteMessage sends raw bytes over the connection.
func (c *Client) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.state.Load() != StateConnected {
		return fmt.Errorf("websocket not connected")
	}

	return c.conn.WriteMessage(gws.OpcodeText, data)
}

// SendJSON marshals v and sends it over the connection.
func (c *Client) SendJSON(v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return c.WriteMessage(data)
}

// Close shuts the client down and releases all resources.
func (c *Client) Close() error {
	if !c.state.CompareAndSwap(StateConnected, StateClosed) &&
		!c.state.CompareAndSwap(StateConnecting, StateClosed) &&
		!c.state.CompareAndSwap(StateReconnecting, StateClosed) &&
		!c.state.CompareAndSwap(StateDisconnected, StateClosed) {
		return nil
	}

	close(c.stopChan)

	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.NetConn().Close()
	}
	c.mu.Unlock()

	c.wg.Wait()
	close(c.messages)
	return nil
}

func (c *Client) attemptReconnect() {
	if !c.state.CompareAndSwap(StateDisconnected, StateReconnecting) {
		return
	}

	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		c.mu.Lock()
		attempts := c.reconnectAttempts
		c.reconnectAttempts++
		c.mu.Unlock()

		wait := min(c.config.ReconnectBaseWait*time.Duration(1<<uint(attempts)), c.config.ReconnectMaxWait)
		c.logger.Info().
			Dur("wait", wait).
			Int("attempt", attempts+1).
			Msg("attempting reconnect")

		select {
		case <-time.After(wait):
		case <-c.stopChan:
			return
		}

		c.state.Store(StateDisconnected)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.Connect(ctx)
		cancel()
		if err != nil {
			c.logger.Error().Err(err).
				Int("attempt", attempts+1).
				Msg("reconnect failed")
			c.state.Store(StateReconnecting)
			continue
		}

		c.logger.Info().Msg("reconnected successfully")
		return
	}
}
