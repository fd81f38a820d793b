package solana

import (
	"context"
	"errors"
)

// ErrInterrupted is returned by ReadMessage after Interrupt was called.
var ErrInterrupted = errors.New("read interrupted")

// Dialer opens connections to the upstream notification feed.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Conn is a single upstream connection. It supports one reader; Subscribe,
// Interrupt and Close may be called from other goroutines.
type Conn interface {
	// Subscribe sends the subscription request. No acknowledgement is awaited.
	Subscribe(ctx context.Context, req SubscribeRequest) error

	// ReadMessage blocks until the next frame arrives or the read times out.
	ReadMessage() ([]byte, error)

	// Interrupt unblocks a pending ReadMessage without closing the connection.
	Interrupt()

	// Close sends a close frame and releases the connection.
	Close() error
}
