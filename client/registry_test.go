package client

import (
	"testing"
	"time"

	"krakenfeed/models"
)

func TestRegistryAddPreservesInsertionOrder(t *testing.T) {
	r := NewRegistry()
	subs := []models.Subscription{
		{Channel: models.ChannelBook, Symbol: "XBT/USD", Depth: 10},
		{Channel: models.ChannelTrade, Symbol: "ETH/USD"},
		{Channel: models.ChannelBook, Symbol: "ETH/USD", Depth: 25},
	}
	for i, s := range subs {
		r.Add(s, uint64(i))
	}

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	for i, s := range subs {
		if all[i].Fingerprint() != s.Fingerprint() {
			t.Fatalf("order mismatch at %d: got %v want %v", i, all[i], s)
		}
	}
}

func TestRegistryAddIsIdempotent(t *testing.T) {
	r := NewRegistry()
	sub := models.Subscription{Channel: models.ChannelBook, Symbol: "XBT/USD", Depth: 10}
	r.Add(sub, 1)
	r.Add(sub, 2)
	if r.Len() != 1 {
		t.Fatalf("expected re-adding the same subscription to be a no-op, got len %d", r.Len())
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	sub := models.Subscription{Channel: models.ChannelTicker, Symbol: "XBT/USD"}
	r.Add(sub, 1)
	r.Remove(sub)
	if r.Len() != 0 {
		t.Fatalf("expected registry empty after remove, got %d", r.Len())
	}
}

func TestRegistryUnackedRetriesOnceAfterTimeout(t *testing.T) {
	r := NewRegistry()
	sub := models.Subscription{Channel: models.ChannelBook, Symbol: "XBT/USD", Depth: 10}
	key := r.Add(sub, 1)

	// Not yet due.
	if due := r.Unacked(time.Hour); len(due) != 0 {
		t.Fatalf("expected no unacked entries before timeout, got %d", len(due))
	}

	// Force the entry to look old enough to be due.
	r.entries[key].requestedAt = time.Now().Add(-time.Minute)
	due := r.Unacked(time.Second)
	if len(due) != 1 {
		t.Fatalf("expected exactly 1 unacked entry due for retry, got %d", len(due))
	}

	// A second call must not retry it again (retry-once rule).
	r.entries[key].requestedAt = time.Now().Add(-time.Minute)
	due = r.Unacked(time.Second)
	if len(due) != 0 {
		t.Fatalf("expected no further retries after the first, got %d", len(due))
	}
}

func TestRegistryMarkAckedStopsRetries(t *testing.T) {
	r := NewRegistry()
	sub := models.Subscription{Channel: models.ChannelTrade, Symbol: "XBT/USD"}
	key := r.Add(sub, 1)
	r.MarkAcked(key)

	r.entries[key].requestedAt = time.Now().Add(-time.Minute)
	if due := r.Unacked(time.Second); len(due) != 0 {
		t.Fatalf("expected acked entry to never be retried, got %d", len(due))
	}
}

func TestRegistryResetForReconnect(t *testing.T) {
	r := NewRegistry()
	sub := models.Subscription{Channel: models.ChannelBook, Symbol: "XBT/USD", Depth: 10}
	key := r.Add(sub, 1)
	r.MarkAcked(key)

	r.ResetForReconnect()
	r.entries[key].requestedAt = time.Now().Add(-time.Minute)
	if due := r.Unacked(time.Second); len(due) != 1 {
		t.Fatalf("expected reconnect to re-arm acked entries as pending, got %d due", len(due))
	}
}
