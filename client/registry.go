package client

import (
	"time"

	"krakenfeed/models"
)

// subscriptionState tracks one registry entry's acknowledgement lifecycle.
type subscriptionState int

const (
	subPending subscriptionState = iota
	subAcked
	subRetried
)

type registryEntry struct {
	sub         models.Subscription
	state       subscriptionState
	requestedAt time.Time
	reqID       uint64
}

// Registry is the client's subscription book of record (spec.md §4.6): one
// entry per (channel, symbol, option-fingerprint), kept in insertion order
// so reconnects can resubscribe deterministically.
type Registry struct {
	order   []string
	entries map[string]*registryEntry
}

// NewRegistry builds an empty subscription registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Add records a new desired subscription, returning its fingerprint key.
// Re-adding an existing subscription is a no-op: it returns the same key and
// leaves the existing entry unchanged.
func (r *Registry) Add(sub models.Subscription, reqID uint64) string {
	key := sub.Fingerprint()
	if _, ok := r.entries[key]; ok {
		return key
	}
	r.order = append(r.order, key)
	r.entries[key] = &registryEntry{sub: sub, state: subPending, requestedAt: time.Now(), reqID: reqID}
	return key
}

// Remove deletes a subscription from the registry.
func (r *Registry) Remove(sub models.Subscription) {
	key := sub.Fingerprint()
	if _, ok := r.entries[key]; !ok {
		return
	}
	delete(r.entries, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// MarkAcked records that the server confirmed the subscription identified
// by key.
func (r *Registry) MarkAcked(key string) {
	if e, ok := r.entries[key]; ok {
		e.state = subAcked
	}
}

// ByFingerprint looks up the fingerprint matching a subscriptionStatus
// reply's (channel, symbol, depth/interval) fields.
func (r *Registry) ByFingerprint(key string) (models.Subscription, bool) {
	e, ok := r.entries[key]
	if !ok {
		return models.Subscription{}, false
	}
	return e.sub, true
}

// All returns every registered subscription in insertion order, the order
// a reconnect replays them in.
func (r *Registry) All() []models.Subscription {
	out := make([]models.Subscription, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.entries[key].sub)
	}
	return out
}

// ResetForReconnect marks every entry pending again, so a fresh connection
// knows it must resubscribe everything.
func (r *Registry) ResetForReconnect() {
	for _, e := range r.entries {
		e.state = subPending
		e.requestedAt = time.Now()
	}
}

// Unacked returns the subscriptions still awaiting a
// subscriptionStatus reply after the given ack timeout, that have not yet
// been retried (spec.md §4.6's "retry once after 10s" rule). Calling this
// transitions those entries into the retried state so they are retried at
// most once.
func (r *Registry) Unacked(ackTimeout time.Duration) []models.Subscription {
	var due []models.Subscription
	now := time.Now()
	for _, key := range r.order {
		e := r.entries[key]
		if e.state == subPending && now.Sub(e.requestedAt) >= ackTimeout {
			e.state = subRetried
			e.requestedAt = now
			due = append(due, e.sub)
		}
	}
	return due
}

// Len reports the number of registered subscriptions.
func (r *Registry) Len() int { return len(r.order) }
