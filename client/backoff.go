package client

import (
	"math/rand"
	"time"
)

// Backoff implements the exponential reconnect delay from spec.md §5: base
// 1s, doubling, capped at 60s, with ±20% jitter. Reset() is called once the
// server reports an "online" systemStatus, matching the spec's "reset on
// online" rule.
type Backoff struct {
	base       time.Duration
	cap        time.Duration
	multiplier float64
	jitter     float64

	attempt int
	rng     *rand.Rand
}

// NewBackoff builds a Backoff from reconnect config values.
func NewBackoff(base, cap time.Duration, multiplier, jitter float64) *Backoff {
	return &Backoff{
		base:       base,
		cap:        cap,
		multiplier: multiplier,
		jitter:     jitter,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the delay to wait before the next reconnect attempt and
// advances internal state.
func (b *Backoff) Next() time.Duration {
	d := float64(b.base)
	for i := 0; i < b.attempt; i++ {
		d *= b.multiplier
	}
	if d > float64(b.cap) {
		d = float64(b.cap)
	}
	b.attempt++

	if b.jitter > 0 {
		delta := d * b.jitter
		d += (b.rng.Float64()*2 - 1) * delta
		if d < 0 {
			d = 0
		}
	}
	return time.Duration(d)
}

// Reset clears the attempt counter, used after a successful "online"
// status is observed.
func (b *Backoff) Reset() {
	b.attempt = 0
}
