// Package models holds the typed representation of every inbound/outbound
// frame exchanged with the server (spec.md §3/§6), independent of how a
// frame is decoded (see package wire).
package models

// Symbol is an opaque exchange pair identifier (e.g. "XBT/USD"). It is
// treated purely as an ordered key: equality and hashing only.
type Symbol string

// Side identifies which side of the book or which direction a trade took.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType distinguishes the kind of order behind a trade print.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// EventKind discriminates the Event tagged union.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventTrade
	EventBookSnapshot
	EventBookUpdate
	EventTicker
	EventOHLC
	EventOwnTrade
	EventOpenOrder
	EventSystemStatus
	EventHeartbeat
	EventPong
	EventSubscriptionStatus
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventTrade:
		return "Trade"
	case EventBookSnapshot:
		return "BookSnapshot"
	case EventBookUpdate:
		return "BookUpdate"
	case EventTicker:
		return "Ticker"
	case EventOHLC:
		return "OHLC"
	case EventOwnTrade:
		return "OwnTrade"
	case EventOpenOrder:
		return "OpenOrder"
	case EventSystemStatus:
		return "SystemStatus"
	case EventHeartbeat:
		return "Heartbeat"
	case EventPong:
		return "Pong"
	case EventSubscriptionStatus:
		return "SubscriptionStatus"
	case EventError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Event is the tagged union broadcast to consumers (spec.md §3). Exactly one
// of the typed fields is populated, selected by Kind. Events are owned
// values; the broadcaster makes a shallow copy per consumer.
type Event struct {
	Kind EventKind

	Trade              *TradeEvent
	Book               *BookEvent
	Ticker             *TickerEvent
	OHLC               *OHLCEvent
	OwnTrade           *OwnTradeEvent
	OpenOrder          *OpenOrderEvent
	SystemStatus       *SystemStatusEvent
	Heartbeat          *HeartbeatEvent
	Pong               *PongEvent
	SubscriptionStatus *SubscriptionStatusEvent
	Error              *ErrorEvent
}

// TradeEvent carries one frame's worth of trade prints for a symbol.
type TradeEvent struct {
	Symbol Symbol
	Trades []Trade
}

// Trade is a single executed trade (spec.md §3).
type Trade struct {
	Price     string
	Volume    string
	Time      string
	Side      Side
	OrderType OrderType
	Misc      string
}

// BookEvent carries a snapshot or delta for a symbol's order book.
type BookEvent struct {
	Symbol       Symbol
	DepthLimit   int
	IsSnapshot   bool
	Asks         []BookLevel
	Bids         []BookLevel
	Checksum     string
	HasChecksum  bool
	Synchronized bool
}

// BookLevel is a single price level (spec.md §3). Price/Quantity retain the
// server's exact textual form; Timestamp is carried as text.
type BookLevel struct {
	Price     string
	Quantity  string
	Timestamp string
	Republish bool
}

// TickerEvent is a faithful pass-through of the ticker payload.
type TickerEvent struct {
	Symbol Symbol
	Fields map[string]interface{}
}

// OHLCEvent is a single OHLC candle update.
type OHLCEvent struct {
	Symbol   Symbol
	Interval string
	Time     string
	EndTime  string
	Open     string
	High     string
	Low      string
	Close    string
	VWAP     string
	Volume   string
	Count    int64
}

// OwnTradeEvent carries a private own-trades update.
type OwnTradeEvent struct {
	Sequence int64
	Trades   map[string]map[string]interface{}
}

// OpenOrderEvent carries a private open-orders update.
type OpenOrderEvent struct {
	Sequence int64
	Orders   map[string]map[string]interface{}
}

// SystemStatusEvent reports exchange health.
type SystemStatusEvent struct {
	Status  string
	Version string
}

// HeartbeatEvent is an idle-keepalive frame.
type HeartbeatEvent struct{}

// PongEvent replies to an outbound ping.
type PongEvent struct {
	ReqID uint64
}

// SubscriptionStatusKind classifies a subscriptionStatus frame beyond the
// raw "status" text, to let consumers pattern-match without string compares.
type SubscriptionStatusKind int

const (
	SubscriptionSubscribed SubscriptionStatusKind = iota
	SubscriptionUnsubscribed
	SubscriptionError
	SubscriptionUnknown
)

// SubscriptionStatusEvent is the server's ack/nack for a subscribe/unsubscribe.
type SubscriptionStatusEvent struct {
	Kind         SubscriptionStatusKind
	ChannelID    int64
	ChannelName  string
	Symbol       Symbol
	ErrorMessage string
}

// ErrorKind enumerates the error taxonomy from spec.md §7.
type ErrorKind int

const (
	ErrorTransport ErrorKind = iota
	ErrorDecode
	ErrorChecksumMismatch
	ErrorAckTimeout
	ErrorQueueFull
	ErrorAuth
	ErrorShutdown
	ErrorAlreadyConnected
	ErrorNotConnected
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorTransport:
		return "Transport"
	case ErrorDecode:
		return "Decode"
	case ErrorChecksumMismatch:
		return "ChecksumMismatch"
	case ErrorAckTimeout:
		return "AckTimeout"
	case ErrorQueueFull:
		return "QueueFull"
	case ErrorAuth:
		return "Auth"
	case ErrorShutdown:
		return "Shutdown"
	case ErrorAlreadyConnected:
		return "AlreadyConnected"
	case ErrorNotConnected:
		return "NotConnected"
	default:
		return "Unknown"
	}
}

// ErrorEvent is the surfaced error record for non-fatal conditions.
type ErrorEvent struct {
	Kind    ErrorKind
	Symbol  Symbol
	Message string
}
