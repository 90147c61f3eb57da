package client

import (
	"context"
	"errors"
	"time"

	"krakenfeed/book"
	"krakenfeed/checksum"
	"krakenfeed/logger"
	"krakenfeed/models"
	"krakenfeed/transport"
	"krakenfeed/wire"
)

var errShutdown = errors.New("client: shutdown requested")

type rawFrame struct {
	data []byte
	err  error
}

// run is the top-level reconnect loop: dial, drive one connection until it
// fails or shutdown is requested, then back off and redial (spec.md §5).
// It is the only writer of state, the registry, and every book; the one
// concurrent reader is the facade's Snapshot, which reads the books map
// under booksMu.
func (c *Client) run(ctx context.Context) {
	defer close(c.stopped)
	defer c.broadcast.closeAll()
	defer c.running.Store(false)

	for {
		c.setState(StateConnecting)
		err := c.runConnection(ctx, c.endpoint)

		if errors.Is(err, errShutdown) {
			c.setState(StateTerminal)
			return
		}
		if ctx.Err() != nil {
			c.setState(StateTerminal)
			return
		}

		c.setState(StateReconnecting)
		c.registry.ResetForReconnect()
		delay := c.backoff.Next()
		c.log.WithFields(logger.Fields{"delay": delay.String()}).Warn("connection lost, reconnecting")
		c.log.LogMetric("client", "reconnects_total", 1, "counter", logger.Fields{"delay_ms": delay.Milliseconds()})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			c.setState(StateTerminal)
			return
		}
	}
}

// runConnection dials once and services it until it errors, the caller
// cancels ctx, or a shutdown command arrives.
func (c *Client) runConnection(ctx context.Context, url string) error {
	conn, err := c.dialer.Dial(ctx, url)
	if err != nil {
		c.log.WithError(err).Warn("dial failed")
		return err
	}
	defer conn.Close()

	c.setState(StateConnectedHealthy)
	c.lastServerActivity.Store(time.Now().UnixNano())

	frames := make(chan rawFrame, c.cfg.Channels.EventBuffer)
	readerDone := make(chan struct{})
	go c.readPump(conn, frames, readerDone)
	defer func() {
		conn.Close()
		<-readerDone
	}()

	c.resubscribeAll(ctx, conn)

	pingInterval := c.cfg.Timeouts.HeartbeatInterval
	if pingInterval <= 0 {
		pingInterval = 5 * time.Second
	}
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	ackTicker := time.NewTicker(time.Second)
	defer ackTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case cmd := <-c.commands:
			if cmd.kind == cmdShutdown {
				if cmd.done != nil {
					cmd.done <- nil
				}
				return errShutdown
			}
			err := c.handleCommand(conn, cmd)
			if cmd.done != nil {
				cmd.done <- err
			}
			if err != nil {
				c.log.WithError(err).Warn("command failed")
			}

		case f := <-frames:
			if f.err != nil {
				return f.err
			}
			c.handleFrame(conn, f.data)

		case <-pingTicker.C:
			if time.Since(c.lastActivity()) > pingInterval*3 {
				c.log.Warn("no server activity, forcing reconnect")
				return errors.New("client: heartbeat timeout")
			}
			if err := c.sendPing(conn); err != nil {
				return err
			}

		case <-ackTicker.C:
			c.retryUnacked(conn)
		}
	}
}

func (c *Client) readPump(conn transport.Conn, frames chan<- rawFrame, done chan<- struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			frames <- rawFrame{err: err}
			return
		}
		frames <- rawFrame{data: data}
	}
}

func (c *Client) handleCommand(conn transport.Conn, cmd command) error {
	switch cmd.kind {
	case cmdSubscribe:
		reqID := c.nextReqID()
		c.registry.Add(cmd.sub, reqID)
		data, err := wire.EncodeSubscribe(cmd.sub, reqID)
		if err != nil {
			return err
		}
		return c.write(conn, data)

	case cmdUnsubscribe:
		c.registry.Remove(cmd.sub)
		data, err := wire.EncodeUnsubscribe(cmd.sub, c.nextReqID())
		if err != nil {
			return err
		}
		if cmd.sub.Channel == models.ChannelBook {
			c.booksMu(func() {
				delete(c.books, cmd.sub.Symbol)
			})
		}
		return c.write(conn, data)

	default:
		return nil
	}
}

func (c *Client) resubscribeAll(ctx context.Context, conn transport.Conn) {
	for _, sub := range c.registry.All() {
		if sub.IsPrivate() && c.auth != nil {
			token, err := c.auth.GetWebSocketToken(ctx)
			if err != nil {
				c.log.WithError(err).Error("failed to refresh token for private resubscribe")
				continue
			}
			sub.Token = token
		}
		data, err := wire.EncodeSubscribe(sub, c.nextReqID())
		if err != nil {
			c.log.WithError(err).Error("failed to encode resubscribe frame")
			continue
		}
		if err := c.write(conn, data); err != nil {
			c.log.WithError(err).Error("failed to send resubscribe frame")
		}
	}
}

func (c *Client) retryUnacked(conn transport.Conn) {
	ackTimeout := c.cfg.Timeouts.SubscriptionAck
	if ackTimeout <= 0 {
		ackTimeout = 10 * time.Second
	}
	for _, sub := range c.registry.Unacked(ackTimeout) {
		c.log.WithFields(logger.Fields{"channel": string(sub.Channel), "symbol": string(sub.Symbol)}).
			Warn("subscription not acked in time, retrying once")
		data, err := wire.EncodeSubscribe(sub, c.nextReqID())
		if err != nil {
			continue
		}
		_ = c.write(conn, data)
	}
}

func (c *Client) sendPing(conn transport.Conn) error {
	data, err := wire.EncodePing(c.nextReqID())
	if err != nil {
		return err
	}
	return c.write(conn, data)
}

func (c *Client) write(conn transport.Conn, data []byte) error {
	writeTimeout := c.cfg.Timeouts.Ping
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(1, data) // 1 == websocket.TextMessage
}

func (c *Client) handleFrame(conn transport.Conn, data []byte) {
	c.lastServerActivity.Store(time.Now().UnixNano())

	evt, err := wire.Decode(data)
	if err != nil {
		c.log.WithError(err).Debug("failed to decode frame")
		c.broadcast.publish(models.Event{Kind: models.EventError, Error: &models.ErrorEvent{
			Kind: models.ErrorDecode, Message: err.Error(),
		}})
		return
	}

	switch evt.Kind {
	case models.EventSystemStatus:
		c.handleSystemStatus(evt.SystemStatus)
	case models.EventHeartbeat, models.EventPong:
		// activity timestamp already refreshed above.
	case models.EventSubscriptionStatus:
		c.handleSubscriptionStatus(conn, evt.SubscriptionStatus)
	case models.EventBookSnapshot:
		c.handleBookSnapshot(evt.Book)
	case models.EventBookUpdate:
		c.handleBookUpdate(conn, evt.Book)
	default:
		c.broadcast.publish(evt)
	}
}

func (c *Client) handleSystemStatus(status *models.SystemStatusEvent) {
	if status.Status == "online" {
		c.backoff.Reset()
		c.setState(StateConnectedHealthy)
	} else {
		c.setState(StateConnectedDegraded)
	}
	c.broadcast.publish(models.Event{Kind: models.EventSystemStatus, SystemStatus: status})
}

func (c *Client) handleSubscriptionStatus(conn transport.Conn, status *models.SubscriptionStatusEvent) {
	if status.Kind == models.SubscriptionSubscribed {
		key := models.Subscription{
			Channel: models.ChannelName(channelBaseName(status.ChannelName)),
			Symbol:  status.Symbol,
			Depth:   depthFromName(status.ChannelName),
		}.Fingerprint()
		c.registry.MarkAcked(key)

		if status.Symbol != "" && channelBaseName(status.ChannelName) == string(models.ChannelBook) {
			c.booksMu(func() {
				if _, ok := c.books[status.Symbol]; !ok {
					c.books[status.Symbol] = book.New(status.Symbol, depthFromName(status.ChannelName))
				}
			})
		}
	}
	c.broadcast.publish(models.Event{Kind: models.EventSubscriptionStatus, SubscriptionStatus: status})
}

func (c *Client) handleBookSnapshot(evt *models.BookEvent) {
	b := c.bookFor(evt.Symbol, evt.DepthLimit)
	b.ApplySnapshot(evt.Asks, evt.Bids)
	asks, bids := b.Top(checksum.Depth)
	c.broadcast.publish(models.Event{Kind: models.EventBookSnapshot, Book: &models.BookEvent{
		Symbol: evt.Symbol, DepthLimit: evt.DepthLimit, IsSnapshot: true,
		Asks: asks, Bids: bids, Synchronized: true,
	}})
}

func (c *Client) handleBookUpdate(conn transport.Conn, evt *models.BookEvent) {
	b := c.bookFor(evt.Symbol, evt.DepthLimit)
	ok := b.ApplyDelta(evt.Asks, evt.Bids, evt.Checksum, evt.HasChecksum)
	asks, bids := b.Top(checksum.Depth)

	c.broadcast.publish(models.Event{Kind: models.EventBookUpdate, Book: &models.BookEvent{
		Symbol: evt.Symbol, DepthLimit: evt.DepthLimit,
		Asks: asks, Bids: bids, Checksum: evt.Checksum, HasChecksum: evt.HasChecksum,
		Synchronized: ok,
	}})

	if !ok {
		c.log.WithFields(logger.Fields{"symbol": string(evt.Symbol)}).Warn("book out of sync, resubscribing for a fresh snapshot")
		c.log.LogMetric("client", "checksum_mismatches_total", 1, "counter", logger.Fields{"symbol": string(evt.Symbol)})
		c.broadcast.publish(models.Event{Kind: models.EventError, Error: &models.ErrorEvent{
			Kind: models.ErrorChecksumMismatch, Symbol: evt.Symbol, Message: "checksum mismatch, resynchronizing",
		}})
		c.resyncBook(conn, evt.Symbol, evt.DepthLimit)
	}
}

func (c *Client) resyncBook(conn transport.Conn, symbol models.Symbol, depth int) {
	sub := models.Subscription{Channel: models.ChannelBook, Symbol: symbol, Depth: depth}
	unsub, err := wire.EncodeUnsubscribe(sub, c.nextReqID())
	if err == nil {
		_ = c.write(conn, unsub)
	}
	resub, err := wire.EncodeSubscribe(sub, c.nextReqID())
	if err == nil {
		_ = c.write(conn, resub)
	}
}

func (c *Client) bookFor(symbol models.Symbol, depth int) *book.Book {
	var b *book.Book
	c.booksMu(func() {
		existing, ok := c.books[symbol]
		if !ok {
			existing = book.New(symbol, depth)
			c.books[symbol] = existing
		}
		b = existing
	})
	return b
}

// booksMu serializes access to the books map. The event loop is the only
// caller in practice, but the facade's Snapshot() method also reads it.
func (c *Client) booksMu(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

func (c *Client) lastActivity() time.Time {
	return time.Unix(0, c.lastServerActivity.Load())
}

func (c *Client) nextReqID() uint64 {
	return c.reqID.Add(1)
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// State returns the client's current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

func channelBaseName(channelName string) string {
	for i, r := range channelName {
		if r == '-' {
			return channelName[:i]
		}
	}
	return channelName
}

func depthFromName(channelName string) int {
	idx := -1
	for i, r := range channelName {
		if r == '-' {
			idx = i
		}
	}
	if idx < 0 {
		return checksum.Depth
	}
	depth := 0
	for _, r := range channelName[idx+1:] {
		if r < '0' || r > '9' {
			return checksum.Depth
		}
		depth = depth*10 + int(r-'0')
	}
	if depth == 0 {
		return checksum.Depth
	}
	return depth
}
