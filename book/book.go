// Package book maintains a single symbol's local order book image, applying
// snapshots and incremental deltas the way spec.md §4.4 describes, and
// verifying each update against the server's CRC-32 checksum.
package book

import (
	"sort"
	"strconv"

	"krakenfeed/checksum"
	"krakenfeed/logger"
	"krakenfeed/models"
)

// level is a decoded price level kept internally as parsed floats for
// ordering, alongside the original text for checksum purposes.
type level struct {
	price    float64
	quantity string
	text     string // original price text, preserved verbatim
	ts       string
}

// Book is the local replica of one symbol's order book. It is not
// goroutine-safe; callers (the client event loop) own exclusive access.
type Book struct {
	symbol models.Symbol
	depth  int

	asks []level // ascending by price
	bids []level // descending by price

	synced bool
	log    *logger.Entry
}

// New creates an empty book for symbol, truncated to depth levels per side.
func New(symbol models.Symbol, depth int) *Book {
	if depth <= 0 {
		depth = checksum.Depth
	}
	return &Book{
		symbol: symbol,
		depth:  depth,
		log:    logger.GetLogger().WithComponent("book").WithFields(logger.Fields{"symbol": string(symbol)}),
	}
}

// Symbol returns the book's symbol.
func (b *Book) Symbol() models.Symbol { return b.symbol }

// Synchronized reports whether the book holds a snapshot that no later delta
// has invalidated. It is false for a new book until its first snapshot.
func (b *Book) Synchronized() bool { return b.synced }

// Clear wipes both sides of the book and marks it desynchronized, per
// spec.md §4.3: on a checksum mismatch (or any other desync condition) the
// stale levels must not be served to callers while a fresh snapshot is
// pending.
func (b *Book) Clear() {
	b.asks = nil
	b.bids = nil
	b.synced = false
}

// ApplySnapshot replaces the book's contents wholesale, as received on
// subscribe.
func (b *Book) ApplySnapshot(asks, bids []models.BookLevel) {
	b.asks = toLevels(asks)
	b.bids = toLevels(bids)
	sort.Slice(b.asks, func(i, j int) bool { return b.asks[i].price < b.asks[j].price })
	sort.Slice(b.bids, func(i, j int) bool { return b.bids[i].price > b.bids[j].price })
	b.truncate()
	b.synced = true
}

// ApplyDelta merges an incremental update into the book, then checks it for
// any of the desync conditions spec.md §4.2/§4.3 names: a crossed book,
// fewer than checksum.Depth levels remaining on either side, or a checksum
// mismatch. On any of those it clears both sides and returns false,
// signaling the caller to request a fresh snapshot; otherwise it returns
// true with the merged book intact.
func (b *Book) ApplyDelta(asks, bids []models.BookLevel, checksumText string, hasChecksum bool) bool {
	for _, lvl := range asks {
		b.mergeSide(&b.asks, lvl, true)
	}
	for _, lvl := range bids {
		b.mergeSide(&b.bids, lvl, false)
	}
	b.truncate()

	if crossed(b.asks, b.bids) {
		b.log.Warn("crossed book detected after delta merge")
		b.Clear()
		return false
	}

	if len(b.asks) < checksum.Depth || len(b.bids) < checksum.Depth {
		b.log.WithFields(logger.Fields{"asks": len(b.asks), "bids": len(b.bids)}).
			Warn("fewer than the required levels remain after delta, resync required")
		b.Clear()
		return false
	}

	if !hasChecksum {
		return true
	}

	local := checksum.Compute(fromLevels(b.asks), fromLevels(b.bids))
	ok := checksum.Verify(local, checksumText)
	if !ok {
		b.log.WithFields(logger.Fields{"server_checksum": checksumText}).Warn("checksum mismatch, resync required")
		b.Clear()
		return false
	}
	return true
}

// Top returns up to k levels on each side, best price first.
func (b *Book) Top(k int) (asks, bids []models.BookLevel) {
	ak, bk := k, k
	if k <= 0 || ak > len(b.asks) {
		ak = len(b.asks)
	}
	asks = fromLevels(b.asks[:ak])
	if k <= 0 || bk > len(b.bids) {
		bk = len(b.bids)
	}
	bids = fromLevels(b.bids[:bk])
	return asks, bids
}

func (b *Book) truncate() {
	if len(b.asks) > b.depth {
		b.asks = b.asks[:b.depth]
	}
	if len(b.bids) > b.depth {
		b.bids = b.bids[:b.depth]
	}
}

// mergeSide applies one level update to a sorted side: a zero quantity
// removes the level, otherwise it is inserted or replaces the existing
// entry at that price, keeping the side sorted best-price-first.
func (b *Book) mergeSide(side *[]level, upd models.BookLevel, ascending bool) {
	lvl := toLevel(upd)
	isZero := isZeroQuantity(upd.Quantity)

	s := *side
	idx := sort.Search(len(s), func(i int) bool {
		if ascending {
			return s[i].price >= lvl.price
		}
		return s[i].price <= lvl.price
	})

	if idx < len(s) && s[idx].price == lvl.price {
		if isZero {
			*side = append(s[:idx], s[idx+1:]...)
		} else {
			s[idx] = lvl
		}
		return
	}
	if isZero {
		return
	}
	s = append(s, level{})
	copy(s[idx+1:], s[idx:])
	s[idx] = lvl
	*side = s
}

func isZeroQuantity(qty string) bool {
	for _, c := range qty {
		if c != '0' && c != '.' {
			return false
		}
	}
	return true
}

func crossed(asks, bids []level) bool {
	if len(asks) == 0 || len(bids) == 0 {
		return false
	}
	return bids[0].price >= asks[0].price
}

func toLevel(l models.BookLevel) level {
	price, _ := strconv.ParseFloat(l.Price, 64)
	return level{price: price, quantity: l.Quantity, text: l.Price, ts: l.Timestamp}
}

func toLevels(ls []models.BookLevel) []level {
	out := make([]level, 0, len(ls))
	for _, l := range ls {
		out = append(out, toLevel(l))
	}
	return out
}

func fromLevels(ls []level) []models.BookLevel {
	out := make([]models.BookLevel, 0, len(ls))
	for _, l := range ls {
		out = append(out, models.BookLevel{Price: l.text, Quantity: l.quantity, Timestamp: l.ts})
	}
	return out
}
