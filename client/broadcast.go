package client

import (
	"fmt"
	"sync"
	"sync/atomic"

	"krakenfeed/logger"
	"krakenfeed/models"
)

// broadcaster fans out events to any number of consumers without ever
// blocking the event loop (spec.md §4.7): each consumer has its own bounded
// channel, and a consumer that falls behind has events dropped rather than
// stalling the loop. The next event delivered to a lagging consumer is
// preceded by a synthetic EventError carrying the drop count, so consumers
// can detect the gap instead of silently missing data.
type broadcaster struct {
	mu      sync.Mutex
	subs    map[int]*consumer
	nextID  int
	bufSize int
	log     *logger.Entry
}

type consumer struct {
	ch      chan models.Event
	dropped atomic.Int64
}

func newBroadcaster(bufSize int) *broadcaster {
	if bufSize <= 0 {
		bufSize = 100
	}
	return &broadcaster{
		subs:    make(map[int]*consumer),
		bufSize: bufSize,
		log:     logger.GetLogger().WithComponent("broadcast"),
	}
}

// subscribe registers a new consumer and returns its id and read channel.
func (b *broadcaster) subscribe() (int, <-chan models.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	c := &consumer{ch: make(chan models.Event, b.bufSize)}
	b.subs[id] = c
	return id, c.ch
}

// unsubscribe removes a consumer and closes its channel.
func (b *broadcaster) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.subs[id]; ok {
		close(c.ch)
		delete(b.subs, id)
	}
}

// publish delivers evt to every consumer, never blocking.
func (b *broadcaster) publish(evt models.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.subs {
		if dropped := deliver(c, evt); dropped {
			b.log.LogMetric("broadcast", "consumer_drops_total", 1, "counter", nil)
		}
	}
}

// closeAll closes every consumer channel, used on shutdown.
func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, c := range b.subs {
		close(c.ch)
		delete(b.subs, id)
	}
}

// deliver attempts to hand evt to c, reporting whether it had to be dropped.
func deliver(c *consumer, evt models.Event) (dropped bool) {
	if n := c.dropped.Load(); n > 0 {
		gap := models.Event{
			Kind: models.EventError,
			Error: &models.ErrorEvent{
				Kind:    models.ErrorQueueFull,
				Message: fmt.Sprintf("dropped %d events while consumer was slow", n),
			},
		}
		select {
		case c.ch <- gap:
			c.dropped.Store(0)
		default:
			c.dropped.Add(1)
			return true
		}
	}

	select {
	case c.ch <- evt:
		return false
	default:
		c.dropped.Add(1)
		return true
	}
}
