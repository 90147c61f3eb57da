// Package transport wraps the raw WebSocket connection behind a small
// interface so the client event loop (package client) can own it directly —
// single-writer, no background pumps — while still being testable against a
// fake. The concrete implementation is gorilla/websocket, grounded the same
// way bally65-singularity's BaseWSClient drives its connection.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn the event loop needs. A fake
// implementation lets loop_test.go drive the event loop without a real
// socket.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Dialer opens new connections to a single endpoint.
type Dialer struct {
	HandshakeTimeout time.Duration
}

// NewDialer returns a Dialer with the given handshake timeout.
func NewDialer(handshakeTimeout time.Duration) *Dialer {
	if handshakeTimeout <= 0 {
		handshakeTimeout = 10 * time.Second
	}
	return &Dialer{HandshakeTimeout: handshakeTimeout}
}

// Dial opens a new WebSocket connection to url.
func (d *Dialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", url, err)
	}
	return conn, nil
}
