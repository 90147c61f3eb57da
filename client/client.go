// Package client is the public entry point: a single-writer WebSocket
// client for Kraken's market-data API (spec.md §1). One goroutine (run, in
// loop.go) owns the transport, the per-symbol order books and the
// subscription registry; every other goroutine communicates with it either
// through the bounded command channel (Subscribe/Unsubscribe/Shutdown) or by
// reading the broadcast Events channel.
package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"krakenfeed/auth"
	"krakenfeed/book"
	"krakenfeed/config"
	"krakenfeed/logger"
	"krakenfeed/models"
	"krakenfeed/transport"
)

// dialer is the subset of *transport.Dialer the event loop needs, narrowed
// to an interface so tests can substitute a fake connection.
type dialer interface {
	Dial(ctx context.Context, url string) (transport.Conn, error)
}

// Client is a connection to one of Kraken's public or private WebSocket
// endpoints.
type Client struct {
	cfg      *config.Config
	endpoint string
	dialer   dialer
	auth     *auth.Authenticator

	commands  chan command
	broadcast *broadcaster

	registry *Registry
	backoff  *Backoff
	mu       sync.Mutex
	books    map[models.Symbol]*book.Book

	reqID              atomic.Uint64
	state              atomic.Int32
	lastServerActivity atomic.Int64
	running            atomic.Bool

	cancel  context.CancelFunc
	stopped chan struct{}

	log *logger.Entry
}

// New constructs a client for the public market-data endpoint. Call
// Connect to start the event loop.
func New(cfg *config.Config) *Client {
	return newClient(cfg, cfg.Endpoints.Public, nil)
}

// NewPrivate constructs a client for the authenticated endpoint, wiring in
// an Authenticator so SubscribePrivate can obtain WebSocket tokens.
func NewPrivate(cfg *config.Config, authenticator *auth.Authenticator) *Client {
	return newClient(cfg, cfg.Endpoints.Private, authenticator)
}

func newClient(cfg *config.Config, endpoint string, authenticator *auth.Authenticator) *Client {
	return &Client{
		cfg:       cfg,
		endpoint:  endpoint,
		dialer:    transport.NewDialer(cfg.Timeouts.Connect),
		auth:      authenticator,
		commands:  make(chan command, cfg.Channels.CommandBuffer),
		broadcast: newBroadcaster(cfg.Channels.EventBuffer),
		registry:  NewRegistry(),
		backoff: NewBackoff(
			cfg.Reconnect.Base, cfg.Reconnect.Cap, cfg.Reconnect.Multiplier, cfg.Reconnect.Jitter,
		),
		books:   make(map[models.Symbol]*book.Book),
		stopped: make(chan struct{}),
		log:     logger.GetLogger().WithComponent("client"),
	}
}

// Connect starts the event loop in the background. It does not block until
// the first connection succeeds; watch Events for a systemStatus frame, or
// poll State(), to know when the connection is live. Calling Connect on a
// client whose loop is already running returns an AlreadyConnected error
// (spec.md §4.7) rather than starting a second loop, since only one
// goroutine may ever own the transport, book map, and registry.
func (c *Client) Connect(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return newError(models.ErrorAlreadyConnected, "client is already connected", nil)
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.run(ctx)
	return nil
}

// Events returns a channel of broadcast events for a new consumer. Each
// call creates an independent, bounded subscription; slow consumers have
// events dropped rather than stalling the client (spec.md §4.7). The
// returned cancel function must be called to release the subscription.
func (c *Client) Events() (<-chan models.Event, func()) {
	id, ch := c.broadcast.subscribe()
	return ch, func() { c.broadcast.unsubscribe(id) }
}

// Subscribe requests a public market-data channel for a symbol. It returns
// a NotConnected error (spec.md §4.7) if the event loop is not running.
func (c *Client) Subscribe(ctx context.Context, channel models.ChannelName, symbol models.Symbol, opts ...SubscribeOption) error {
	if !c.running.Load() {
		return newError(models.ErrorNotConnected, "client is not connected", nil)
	}
	sub := models.Subscription{Channel: channel, Symbol: symbol}
	for _, o := range opts {
		o(&sub)
	}
	return c.send(ctx, command{kind: cmdSubscribe, sub: sub})
}

// Unsubscribe cancels a previously requested subscription. It returns a
// NotConnected error (spec.md §4.7) if the event loop is not running.
func (c *Client) Unsubscribe(ctx context.Context, channel models.ChannelName, symbol models.Symbol, opts ...SubscribeOption) error {
	if !c.running.Load() {
		return newError(models.ErrorNotConnected, "client is not connected", nil)
	}
	sub := models.Subscription{Channel: channel, Symbol: symbol}
	for _, o := range opts {
		o(&sub)
	}
	return c.send(ctx, command{kind: cmdUnsubscribe, sub: sub})
}

// SubscribePrivate requests ownTrades or openOrders, fetching a fresh
// WebSocket token first. It requires a client built with NewPrivate and
// returns a NotConnected error (spec.md §4.7) if the event loop is not
// running.
func (c *Client) SubscribePrivate(ctx context.Context, channel models.ChannelName) error {
	if !c.running.Load() {
		return newError(models.ErrorNotConnected, "client is not connected", nil)
	}
	if c.auth == nil {
		return newError(models.ErrorAuth, "client was not constructed with an authenticator", nil)
	}
	token, err := c.auth.GetWebSocketToken(ctx)
	if err != nil {
		return newError(models.ErrorAuth, "failed to obtain WebSocket token", err)
	}
	sub := models.Subscription{Channel: channel, Token: token}
	return c.send(ctx, command{kind: cmdSubscribe, sub: sub})
}

// SubscribeOption customizes a Subscribe/Unsubscribe call.
type SubscribeOption func(*models.Subscription)

// WithDepth sets the book subscription depth (10, 25, 100, ...).
func WithDepth(depth int) SubscribeOption {
	return func(s *models.Subscription) { s.Depth = depth }
}

// WithInterval sets the OHLC candle interval in minutes.
func WithInterval(interval int) SubscribeOption {
	return func(s *models.Subscription) { s.Interval = interval }
}

// Snapshot returns the current top-of-book levels for symbol, if a book
// subscription exists for it.
func (c *Client) Snapshot(symbol models.Symbol, depth int) (asks, bids []models.BookLevel, ok bool) {
	var b *book.Book
	c.booksMu(func() {
		b = c.books[symbol]
	})
	if b == nil {
		return nil, nil, false
	}
	asks, bids = b.Top(depth)
	return asks, bids, true
}

// Shutdown stops the event loop and waits for it to exit, or until ctx is
// done.
func (c *Client) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	select {
	case c.commands <- command{kind: cmdShutdown, done: done}:
	case <-ctx.Done():
		if c.cancel != nil {
			c.cancel()
		}
		return ctx.Err()
	}

	select {
	case <-done:
	case <-ctx.Done():
		if c.cancel != nil {
			c.cancel()
		}
		return ctx.Err()
	}

	select {
	case <-c.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// send enqueues cmd onto the command channel without blocking: a full
// channel returns a QueueFull error immediately (spec.md §7) rather than
// waiting for room to free up.
func (c *Client) send(ctx context.Context, cmd command) error {
	if cmd.done == nil {
		cmd.done = make(chan error, 1)
	}
	select {
	case c.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	default:
		return newError(models.ErrorQueueFull, "command queue is full", nil)
	}

	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// setDialer overrides the connection dialer; used by tests to substitute a
// fake transport instead of dialing a real WebSocket.
func (c *Client) setDialer(d dialer) {
	c.dialer = d
}

// waitConnected blocks until the client reaches a connected state or ctx is
// done, useful in tests and short-lived CLI tools.
func (c *Client) waitConnected(ctx context.Context) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if c.State().Connected() {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
