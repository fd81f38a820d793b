package solana

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSClientConfig configures WebSocket connection behavior.
type WSClientConfig struct {
	// HandshakeTimeout bounds the opening handshake.
	HandshakeTimeout time.Duration
	// PingInterval is interval for sending ping frames. Zero disables pings.
	PingInterval time.Duration
	// ReadTimeout is the longest a connection may stay silent.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// WSDialer implements Dialer using gorilla/websocket.
type WSDialer struct {
	endpoint string
	config   WSClientConfig
}

// NewWSDialer creates a dialer for endpoint. A nil config uses defaults, and
// non-positive timeouts fall back to their default values.
func NewWSDialer(endpoint string, config *WSClientConfig) *WSDialer {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = config.withDefaults()
	}
	return &WSDialer{endpoint: endpoint, config: cfg}
}

func (c WSClientConfig) withDefaults() WSClientConfig {
	d := DefaultWSConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.PingInterval < 0 {
		c.PingInterval = 0
	}
	return c
}

// Compile-time interface checks.
var (
	_ Dialer = (*WSDialer)(nil)
	_ Conn   = (*WSConn)(nil)
)

// Dial establishes a WebSocket connection and starts its ping loop.
func (d *WSDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.config.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, d.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	c := &WSConn{
		conn:   conn,
		config: d.config,
		done:   make(chan struct{}),
	}
	conn.SetPongHandler(func(string) error {
		if c.interrupted.Load() {
			return nil
		}
		return conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	})

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// WSConn is one live upstream connection.
type WSConn struct {
	conn    *websocket.Conn
	config  WSClientConfig
	writeMu sync.Mutex

	closed      atomic.Bool
	interrupted atomic.Bool

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup
}

// Subscribe writes the subscription request.
func (c *WSConn) Subscribe(ctx context.Context, req SubscribeRequest) error {
	if c.closed.Load() {
		return fmt.Errorf("connection closed")
	}

	deadline := time.Now().Add(c.config.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

// ReadMessage reads the next data frame.
func (c *WSConn) ReadMessage() ([]byte, error) {
	if c.interrupted.Load() {
		return nil, ErrInterrupted
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout)); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}
	// Interrupt may have raced with the deadline reset above.
	if c.interrupted.Load() {
		return nil, ErrInterrupted
	}

	_, message, err := c.conn.ReadMessage()
	if err != nil {
		if c.interrupted.Load() {
			return nil, ErrInterrupted
		}
		return nil, fmt.Errorf("websocket read: %w", err)
	}
	return message, nil
}

// Interrupt forces a pending ReadMessage to return.
func (c *WSConn) Interrupt() {
	c.interrupted.Store(true)
	_ = c.conn.SetReadDeadline(time.Now())
}

// Close sends a normal close frame and closes the connection.
func (c *WSConn) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := c.conn.Close()
	c.writeMu.Unlock()

	c.wg.Wait()
	return err
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSConn) pingLoop() {
	defer c.wg.Done()

	if c.config.PingInterval <= 0 {
		return
	}

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			// A failed ping surfaces as a read error on the reader side.
			_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
		}
	}
}
