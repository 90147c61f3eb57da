package book

import (
	"fmt"
	"testing"

	"krakenfeed/models"
)

func lvl(price, qty string) models.BookLevel {
	return models.BookLevel{Price: price, Quantity: qty}
}

// fullSide builds n levels priced base, base+1, ... base+n-1 so a book can satisfy
// the checksum depth requirement in tests that aren't exercising it.
func fullSide(n int, base float64) []models.BookLevel {
	out := make([]models.BookLevel, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, lvl(fmt.Sprintf("%.1f", base+float64(i)), "1"))
	}
	return out
}

func TestApplySnapshotSortsSides(t *testing.T) {
	b := New("XBT/USD", 10)
	b.ApplySnapshot(
		[]models.BookLevel{lvl("101.0", "1"), lvl("100.0", "2")},
		[]models.BookLevel{lvl("98.0", "1"), lvl("99.0", "2")},
	)

	asks, bids := b.Top(10)
	if asks[0].Price != "100.0" || asks[1].Price != "101.0" {
		t.Fatalf("asks not ascending: %+v", asks)
	}
	if bids[0].Price != "99.0" || bids[1].Price != "98.0" {
		t.Fatalf("bids not descending: %+v", bids)
	}
	if !b.Synchronized() {
		t.Fatalf("expected synced after snapshot")
	}
}

func TestApplyDeltaInsertsAndRemoves(t *testing.T) {
	// Depth 25 leaves room for an eleventh ask, so the insert is not
	// truncated away before the removal step.
	b := New("XBT/USD", 25)
	b.ApplySnapshot(fullSide(10, 100), fullSide(10, 50))

	ok := b.ApplyDelta(
		[]models.BookLevel{lvl("100.5", "2")},
		nil,
		"", false,
	)
	if !ok {
		t.Fatalf("expected insertion delta to keep the book synchronized")
	}
	asks, _ := b.Top(20)
	if len(asks) != 11 || asks[1].Price != "100.5" {
		t.Fatalf("expected insertion of new ask level: %+v", asks)
	}

	ok = b.ApplyDelta(
		[]models.BookLevel{lvl("100.0", "0")},
		nil,
		"", false,
	)
	if !ok {
		t.Fatalf("expected removal delta to keep the book synchronized")
	}
	asks, _ = b.Top(20)
	if len(asks) != 10 || asks[0].Price != "100.5" {
		t.Fatalf("expected zero-quantity level removed: %+v", asks)
	}
}

func TestApplyDeltaDetectsCrossedBook(t *testing.T) {
	b := New("XBT/USD", 10)
	b.ApplySnapshot(fullSide(10, 100), fullSide(10, 50))

	ok := b.ApplyDelta(nil, []models.BookLevel{lvl("200.0", "1")}, "", false)
	if ok {
		t.Fatalf("expected crossed book to report failure")
	}
	if b.Synchronized() {
		t.Fatalf("expected book marked unsynchronized after crossing")
	}
	asks, bids := b.Top(20)
	if len(asks) != 0 || len(bids) != 0 {
		t.Fatalf("expected both sides cleared after crossed book, got asks=%+v bids=%+v", asks, bids)
	}
}

func TestApplyDeltaChecksumMismatchTriggersResync(t *testing.T) {
	b := New("XBT/USD", 10)
	b.ApplySnapshot(fullSide(10, 100), fullSide(10, 50))

	ok := b.ApplyDelta(nil, nil, "not-a-real-checksum", true)
	if ok {
		t.Fatalf("expected checksum verification to fail")
	}
	if b.Synchronized() {
		t.Fatalf("expected book marked unsynchronized on checksum mismatch")
	}
	asks, bids := b.Top(20)
	if len(asks) != 0 || len(bids) != 0 {
		t.Fatalf("expected both sides cleared on checksum mismatch, got asks=%+v bids=%+v", asks, bids)
	}
}

func TestApplyDeltaInsufficientLevelsTriggersResync(t *testing.T) {
	b := New("XBT/USD", 10)
	b.ApplySnapshot(fullSide(3, 100), fullSide(3, 50))

	ok := b.ApplyDelta([]models.BookLevel{lvl("100.0", "0")}, nil, "", false)
	if ok {
		t.Fatalf("expected a thin book to desynchronize even without a checksum")
	}
	if b.Synchronized() {
		t.Fatalf("expected book marked unsynchronized when fewer than depth levels remain")
	}
	asks, bids := b.Top(20)
	if len(asks) != 0 || len(bids) != 0 {
		t.Fatalf("expected both sides cleared, got asks=%+v bids=%+v", asks, bids)
	}
}

func TestBookClearWipesBothSides(t *testing.T) {
	b := New("XBT/USD", 10)
	b.ApplySnapshot(fullSide(10, 100), fullSide(10, 50))

	b.Clear()

	if b.Synchronized() {
		t.Fatalf("expected Clear to mark the book unsynchronized")
	}
	asks, bids := b.Top(20)
	if len(asks) != 0 || len(bids) != 0 {
		t.Fatalf("expected Clear to wipe both sides, got asks=%+v bids=%+v", asks, bids)
	}
}
