// Package stream owns the upstream subscription: it connects, subscribes,
// feeds every inbound message to a handler and reconnects with a bounded
// retry budget.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"solana-event-log/internal/clock"
	"solana-event-log/internal/observability"
	"solana-event-log/internal/solana"
)

// ErrRetriesExhausted is returned by Run when MaxAttempts consecutive
// connection attempts failed.
var ErrRetriesExhausted = errors.New("stream: reconnect attempts exhausted")

// State is the connection state owned by the Supervisor.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var allStates = []string{
	StateDisconnected.String(),
	StateConnecting.String(),
	StateSubscribed.String(),
	StateFailed.String(),
}

// Handler consumes inbound messages. It is called from a single goroutine.
type Handler interface {
	HandleMessage(ctx context.Context, raw []byte)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, raw []byte)

// HandleMessage calls f.
func (f HandlerFunc) HandleMessage(ctx context.Context, raw []byte) { f(ctx, raw) }

// Config configures reconnect and shutdown behavior.
type Config struct {
	MaxAttempts       int           // Default: 5 consecutive failures
	ReconnectDelay    time.Duration // Default: 1s
	MaxReconnectDelay time.Duration // Default: 30s
	ConnectTimeout    time.Duration // Default: 10s
	SubscribeTimeout  time.Duration // Default: 10s
	ShutdownTimeout   time.Duration // Default: 15s
}

// DefaultConfig returns the default supervisor configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       5,
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ConnectTimeout:    10 * time.Second,
		SubscribeTimeout:  10 * time.Second,
		ShutdownTimeout:   15 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.ReconnectDelay < 0 {
		c.ReconnectDelay = 0
	}
	if c.MaxReconnectDelay <= 0 {
		c.MaxReconnectDelay = d.MaxReconnectDelay
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.SubscribeTimeout <= 0 {
		c.SubscribeTimeout = d.SubscribeTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}

// Options contains the collaborators of a Supervisor.
type Options struct {
	Dialer  solana.Dialer
	Request solana.SubscribeRequest
	Handler Handler
	// Drain is called on shutdown after reads stop and before the connection
	// closes. It runs under ShutdownTimeout.
	Drain   func(ctx context.Context) error
	Config  Config
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// Supervisor is the connection state machine. Only Run mutates its state.
type Supervisor struct {
	dialer  solana.Dialer
	request solana.SubscribeRequest
	handler Handler
	drain   func(ctx context.Context) error
	cfg     Config
	logger  *zap.Logger
	metrics *observability.Metrics

	state    atomic.Int32
	failures atomic.Int32
	dials    atomic.Int64
}

// New creates a Supervisor in StateDisconnected.
func New(opts Options) *Supervisor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Supervisor{
		dialer:  opts.Dialer,
		request: opts.Request,
		handler: opts.Handler,
		drain:   opts.Drain,
		cfg:     opts.Config.withDefaults(),
		logger:  logger,
		metrics: opts.Metrics,
	}
	s.metrics.SetConnectionState(StateDisconnected.String(), allStates)
	return s
}

// State returns the current connection state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Failures returns the consecutive failure count.
func (s *Supervisor) Failures() int {
	return int(s.failures.Load())
}

// Dials returns the total number of connection attempts made.
func (s *Supervisor) Dials() int64 {
	return s.dials.Load()
}

func (s *Supervisor) setState(next State) {
	prev := State(s.state.Swap(int32(next)))
	if prev == next {
		return
	}
	s.metrics.SetConnectionState(next.String(), allStates)
	s.logger.Debug("state transition",
		zap.Stringer("from", prev),
		zap.Stringer("to", next))
}

// Run drives the state machine until ctx is canceled (returns nil) or the
// retry budget is exhausted (returns ErrRetriesExhausted).
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			s.shutdown(nil)
			return nil
		}

		failures := s.Failures()
		if failures >= s.cfg.MaxAttempts {
			s.setState(StateFailed)
			s.logger.Error("giving up on upstream connection",
				zap.Int("consecutive_failures", failures))
			s.shutdown(nil)
			return fmt.Errorf("%w after %d attempts", ErrRetriesExhausted, failures)
		}

		if failures > 0 {
			delay := clock.Backoff(s.cfg.ReconnectDelay, s.cfg.MaxReconnectDelay, failures)
			s.logger.Info("reconnecting",
				zap.Int("attempt", failures+1),
				zap.Int("max_attempts", s.cfg.MaxAttempts),
				zap.Duration("delay", delay))
			if err := clock.SleepWithContext(ctx, delay); err != nil {
				s.shutdown(nil)
				return nil
			}
		}

		conn, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.shutdown(nil)
				return nil
			}
			s.fail(err)
			continue
		}

		err = s.readLoop(ctx, conn)
		if ctx.Err() != nil {
			s.shutdown(conn)
			return nil
		}

		_ = conn.Close()
		s.fail(err)
	}
}

// connect dials and subscribes. On success the state is Subscribed.
func (s *Supervisor) connect(ctx context.Context) (solana.Conn, error) {
	s.setState(StateConnecting)
	s.dials.Add(1)

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	conn, err := s.dialer.Dial(dialCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	subCtx, cancel := context.WithTimeout(ctx, s.cfg.SubscribeTimeout)
	err = conn.Subscribe(subCtx, s.request)
	cancel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	s.setState(StateSubscribed)
	s.logger.Info("subscribed",
		zap.Uint64("request_id", s.request.ID),
		zap.Strings("accounts", s.request.Filter.AccountInclude))
	return conn, nil
}

// readLoop reads until a transport error or until ctx ends, in which case the
// pending read is interrupted.
func (s *Supervisor) readLoop(ctx context.Context, conn solana.Conn) error {
	stop := context.AfterFunc(ctx, conn.Interrupt)
	defer stop()

	received := false
	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if !received {
			received = true
			if s.failures.Swap(0) > 0 {
				s.logger.Info("connection healthy, retry budget reset")
			}
		}
		s.handler.HandleMessage(ctx, raw)
	}
}

func (s *Supervisor) fail(err error) {
	n := s.failures.Add(1)
	s.setState(StateDisconnected)
	s.metrics.RecordReconnect()
	s.logger.Warn("upstream connection failed",
		zap.Int32("consecutive_failures", n),
		zap.Int("max_attempts", s.cfg.MaxAttempts),
		zap.Error(err))
}

// shutdown runs the drain hook under ShutdownTimeout, then closes conn.
func (s *Supervisor) shutdown(conn solana.Conn) {
	s.logger.Info("shutting down stream")

	if s.drain != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		if err := s.drain(ctx); err != nil {
			s.logger.Warn("drain incomplete", zap.Error(err))
		}
		cancel()
	}

	if conn != nil {
		if err := conn.Close(); err != nil {
			s.logger.Debug("close connection", zap.Error(err))
		}
	}
	if s.State() != StateFailed {
		s.setState(StateDisconnected)
	}
}
