package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"solana-event-log/internal/solana"
)

// fakeConn delivers queued messages, then blocks until interrupted or
// until failAfter messages have been read, when it reports io.EOF.
type fakeConn struct {
	messages  chan []byte
	failAfter int // <0: never fail

	mu          sync.Mutex
	subscribed  []solana.SubscribeRequest
	subErr      error
	reads       int
	interrupt   chan struct{}
	interrupted atomic.Bool
	closed      atomic.Bool
	events      *eventLog
}

func newFakeConn(events *eventLog, failAfter int, msgs ...[]byte) *fakeConn {
	c := &fakeConn{
		messages:  make(chan []byte, len(msgs)+8),
		failAfter: failAfter,
		interrupt: make(chan struct{}),
		events:    events,
	}
	for _, m := range msgs {
		c.messages <- m
	}
	return c
}

func (c *fakeConn) Subscribe(_ context.Context, req solana.SubscribeRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = append(c.subscribed, req)
	return c.subErr
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	c.mu.Lock()
	if c.failAfter >= 0 && c.reads >= c.failAfter {
		c.mu.Unlock()
		return nil, io.EOF
	}
	c.mu.Unlock()

	select {
	case m := <-c.messages:
		c.mu.Lock()
		c.reads++
		c.mu.Unlock()
		return m, nil
	case <-c.interrupt:
		return nil, solana.ErrInterrupted
	}
}

func (c *fakeConn) Interrupt() {
	if !c.interrupted.Swap(true) {
		c.events.add("interrupt")
		close(c.interrupt)
	}
}

func (c *fakeConn) Close() error {
	if !c.closed.Swap(true) {
		c.events.add("close")
	}
	return nil
}

func (c *fakeConn) subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscribed)
}

// fakeDialer returns the scripted connections in order; a nil entry is a
// dial failure. Dials past the script fail.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	calls int
}

var errDialRefused = errors.New("connection refused")

func (d *fakeDialer) Dial(context.Context) (solana.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := d.calls
	d.calls++
	if i >= len(d.conns) || d.conns[i] == nil {
		return nil, errDialRefused
	}
	return d.conns[i], nil
}

func (d *fakeDialer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}
