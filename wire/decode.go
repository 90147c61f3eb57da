// Package wire turns raw WebSocket frames into models.Event values and back.
// Kraken's public API mixes two wire shapes in the same stream: JSON objects
// for control frames ("event" field present) and JSON arrays for market
// data. Decimal fields (price, volume, time) are never reparsed here — they
// stay as the server's exact text so checksum.Compute and any downstream
// arithmetic see the original digits.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"krakenfeed/models"
)

// Decode dispatches a single frame to its object- or array-form decoder.
func Decode(raw []byte) (models.Event, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return models.Event{}, fmt.Errorf("wire: empty frame")
	}

	switch trimmed[0] {
	case '{':
		return decodeObjectFrame(trimmed)
	case '[':
		return decodeArrayFrame(trimmed)
	default:
		return models.Event{}, fmt.Errorf("wire: frame starts with unexpected byte %q", trimmed[0])
	}
}

type eventEnvelope struct {
	Event string `json:"event"`
}

func decodeObjectFrame(raw []byte) (models.Event, error) {
	var env eventEnvelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return models.Event{}, fmt.Errorf("wire: decode event envelope: %w", err)
	}

	switch env.Event {
	case "systemStatus":
		var body struct {
			Status  string `json:"status"`
			Version string `json:"version"`
		}
		if err := sonic.Unmarshal(raw, &body); err != nil {
			return models.Event{}, fmt.Errorf("wire: decode systemStatus: %w", err)
		}
		return models.Event{
			Kind:         models.EventSystemStatus,
			SystemStatus: &models.SystemStatusEvent{Status: body.Status, Version: body.Version},
		}, nil

	case "heartbeat":
		return models.Event{Kind: models.EventHeartbeat, Heartbeat: &models.HeartbeatEvent{}}, nil

	case "pong":
		var body struct {
			ReqID uint64 `json:"reqid"`
		}
		_ = sonic.Unmarshal(raw, &body)
		return models.Event{Kind: models.EventPong, Pong: &models.PongEvent{ReqID: body.ReqID}}, nil

	case "subscriptionStatus":
		var body struct {
			ChannelID    int64  `json:"channelID"`
			ChannelName  string `json:"channelName"`
			Status       string `json:"status"`
			Pair         string `json:"pair"`
			ErrorMessage string `json:"errorMessage"`
		}
		if err := sonic.Unmarshal(raw, &body); err != nil {
			return models.Event{}, fmt.Errorf("wire: decode subscriptionStatus: %w", err)
		}
		kind := models.SubscriptionUnknown
		switch body.Status {
		case "subscribed":
			kind = models.SubscriptionSubscribed
		case "unsubscribed":
			kind = models.SubscriptionUnsubscribed
		case "error":
			kind = models.SubscriptionError
		}
		return models.Event{
			Kind: models.EventSubscriptionStatus,
			SubscriptionStatus: &models.SubscriptionStatusEvent{
				Kind:         kind,
				ChannelID:    body.ChannelID,
				ChannelName:  body.ChannelName,
				Symbol:       models.Symbol(body.Pair),
				ErrorMessage: body.ErrorMessage,
			},
		}, nil

	case "error":
		var body struct {
			ErrorMessage string `json:"errorMessage"`
		}
		_ = sonic.Unmarshal(raw, &body)
		return models.Event{
			Kind:  models.EventError,
			Error: &models.ErrorEvent{Kind: models.ErrorDecode, Message: body.ErrorMessage},
		}, nil

	default:
		return models.Event{}, fmt.Errorf("wire: unrecognized control event %q", env.Event)
	}
}

func decodeArrayFrame(raw []byte) (models.Event, error) {
	var parts []json.RawMessage
	if err := sonic.Unmarshal(raw, &parts); err != nil {
		return models.Event{}, fmt.Errorf("wire: decode array frame: %w", err)
	}
	if len(parts) < 3 {
		return models.Event{}, fmt.Errorf("wire: array frame has %d elements, want >= 3", len(parts))
	}

	n := len(parts)
	var channelName string
	if err := sonic.Unmarshal(parts[n-2], &channelName); err != nil {
		return models.Event{}, fmt.Errorf("wire: decode channel name: %w", err)
	}

	var (
		payload json.RawMessage
		pair    string
	)
	isPublicWithPair := n == 4
	isPublicNoPair := false
	if n == 3 {
		trimmed := bytes.TrimSpace(parts[0])
		isPublicNoPair = len(trimmed) > 0 && trimmed[0] >= '0' && trimmed[0] <= '9'
	}

	switch {
	case isPublicWithPair:
		payload = parts[1]
		_ = sonic.Unmarshal(parts[3], &pair)
	case isPublicNoPair:
		payload = parts[1]
	default:
		payload = parts[0]
	}

	symbol := models.Symbol(pair)

	switch {
	case strings.HasPrefix(channelName, "book"):
		return decodeBook(payload, symbol, channelName)
	case channelName == "trade":
		return decodeTrade(payload, symbol)
	case channelName == "ticker":
		return decodeTicker(payload, symbol)
	case strings.HasPrefix(channelName, "ohlc"):
		return decodeOHLC(payload, symbol, channelName)
	case channelName == "ownTrades":
		return decodeOwnTrades(payload, parts[n-1])
	case channelName == "openOrders":
		return decodeOpenOrders(payload, parts[n-1])
	default:
		return models.Event{}, fmt.Errorf("wire: unrecognized channel name %q", channelName)
	}
}

func decodeLevels(raw json.RawMessage) ([]models.BookLevel, error) {
	var rows [][]string
	if err := sonic.Unmarshal(raw, &rows); err == nil {
		levels := make([]models.BookLevel, 0, len(rows))
		for _, row := range rows {
			levels = append(levels, rowToLevel(row))
		}
		return levels, nil
	}

	// Fall back to heterogeneous rows (the "r" republish marker is not a
	// string-typed column in some server responses).
	var raws [][]json.RawMessage
	if err := sonic.Unmarshal(raw, &raws); err != nil {
		return nil, fmt.Errorf("wire: decode book levels: %w", err)
	}
	levels := make([]models.BookLevel, 0, len(raws))
	for _, cols := range raws {
		row := make([]string, 0, len(cols))
		for _, c := range cols {
			var s string
			_ = sonic.Unmarshal(c, &s)
			row = append(row, s)
		}
		levels = append(levels, rowToLevel(row))
	}
	return levels, nil
}

func rowToLevel(row []string) models.BookLevel {
	lvl := models.BookLevel{}
	if len(row) > 0 {
		lvl.Price = row[0]
	}
	if len(row) > 1 {
		lvl.Quantity = row[1]
	}
	if len(row) > 2 {
		lvl.Timestamp = row[2]
	}
	if len(row) > 3 && row[3] == "r" {
		lvl.Republish = true
	}
	return lvl
}

func decodeBook(raw json.RawMessage, symbol models.Symbol, channelName string) (models.Event, error) {
	var body struct {
		AS       json.RawMessage `json:"as"`
		BS       json.RawMessage `json:"bs"`
		A        json.RawMessage `json:"a"`
		B        json.RawMessage `json:"b"`
		Checksum string          `json:"c"`
	}
	if err := sonic.Unmarshal(raw, &body); err != nil {
		return models.Event{}, fmt.Errorf("wire: decode book payload: %w", err)
	}

	evt := &models.BookEvent{
		Symbol:      symbol,
		DepthLimit:  depthFromChannelName(channelName),
		HasChecksum: body.Checksum != "",
		Checksum:    body.Checksum,
	}

	isSnapshot := len(body.AS) > 0 || len(body.BS) > 0
	evt.IsSnapshot = isSnapshot

	var err error
	if isSnapshot {
		if evt.Asks, err = decodeLevels(body.AS); err != nil {
			return models.Event{}, err
		}
		if evt.Bids, err = decodeLevels(body.BS); err != nil {
			return models.Event{}, err
		}
	} else {
		if len(body.A) > 0 {
			if evt.Asks, err = decodeLevels(body.A); err != nil {
				return models.Event{}, err
			}
		}
		if len(body.B) > 0 {
			if evt.Bids, err = decodeLevels(body.B); err != nil {
				return models.Event{}, err
			}
		}
	}

	kind := models.EventBookUpdate
	if isSnapshot {
		kind = models.EventBookSnapshot
	}
	return models.Event{Kind: kind, Book: evt}, nil
}

func depthFromChannelName(channelName string) int {
	// channel names are "book", "book-10", "book-25", ...
	idx := strings.IndexByte(channelName, '-')
	if idx < 0 {
		return 10
	}
	depth := 0
	for _, c := range channelName[idx+1:] {
		if c < '0' || c > '9' {
			return 10
		}
		depth = depth*10 + int(c-'0')
	}
	if depth == 0 {
		return 10
	}
	return depth
}

func decodeTrade(raw json.RawMessage, symbol models.Symbol) (models.Event, error) {
	var rows [][]string
	if err := sonic.Unmarshal(raw, &rows); err != nil {
		return models.Event{}, fmt.Errorf("wire: decode trade payload: %w", err)
	}
	trades := make([]models.Trade, 0, len(rows))
	for _, row := range rows {
		t := models.Trade{}
		if len(row) > 0 {
			t.Price = row[0]
		}
		if len(row) > 1 {
			t.Volume = row[1]
		}
		if len(row) > 2 {
			t.Time = row[2]
		}
		if len(row) > 3 {
			if row[3] == "s" {
				t.Side = models.SideSell
			} else {
				t.Side = models.SideBuy
			}
		}
		if len(row) > 4 {
			if row[4] == "l" {
				t.OrderType = models.OrderTypeLimit
			} else {
				t.OrderType = models.OrderTypeMarket
			}
		}
		if len(row) > 5 {
			t.Misc = row[5]
		}
		trades = append(trades, t)
	}
	return models.Event{Kind: models.EventTrade, Trade: &models.TradeEvent{Symbol: symbol, Trades: trades}}, nil
}

func decodeTicker(raw json.RawMessage, symbol models.Symbol) (models.Event, error) {
	var fields map[string]interface{}
	if err := sonic.Unmarshal(raw, &fields); err != nil {
		return models.Event{}, fmt.Errorf("wire: decode ticker payload: %w", err)
	}
	return models.Event{Kind: models.EventTicker, Ticker: &models.TickerEvent{Symbol: symbol, Fields: fields}}, nil
}

func decodeOHLC(raw json.RawMessage, symbol models.Symbol, channelName string) (models.Event, error) {
	var row []string
	if err := sonic.Unmarshal(raw, &row); err != nil {
		return models.Event{}, fmt.Errorf("wire: decode ohlc payload: %w", err)
	}
	interval := "1"
	if idx := strings.IndexByte(channelName, '-'); idx >= 0 {
		interval = channelName[idx+1:]
	}
	evt := &models.OHLCEvent{Symbol: symbol, Interval: interval}
	get := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	evt.Time = get(0)
	evt.EndTime = get(1)
	evt.Open = get(2)
	evt.High = get(3)
	evt.Low = get(4)
	evt.Close = get(5)
	evt.VWAP = get(6)
	evt.Volume = get(7)
	return models.Event{Kind: models.EventOHLC, OHLC: evt}, nil
}

func decodeOwnTrades(raw, seqRaw json.RawMessage) (models.Event, error) {
	var rows []map[string]map[string]interface{}
	if err := sonic.Unmarshal(raw, &rows); err != nil {
		return models.Event{}, fmt.Errorf("wire: decode ownTrades payload: %w", err)
	}
	trades := map[string]map[string]interface{}{}
	for _, r := range rows {
		for k, v := range r {
			trades[k] = v
		}
	}
	var seq struct {
		Sequence int64 `json:"sequence"`
	}
	_ = sonic.Unmarshal(seqRaw, &seq)
	return models.Event{
		Kind:     models.EventOwnTrade,
		OwnTrade: &models.OwnTradeEvent{Sequence: seq.Sequence, Trades: trades},
	}, nil
}

func decodeOpenOrders(raw, seqRaw json.RawMessage) (models.Event, error) {
	var rows []map[string]map[string]interface{}
	if err := sonic.Unmarshal(raw, &rows); err != nil {
		return models.Event{}, fmt.Errorf("wire: decode openOrders payload: %w", err)
	}
	orders := map[string]map[string]interface{}{}
	for _, r := range rows {
		for k, v := range r {
			orders[k] = v
		}
	}
	var seq struct {
		Sequence int64 `json:"sequence"`
	}
	_ = sonic.Unmarshal(seqRaw, &seq)
	return models.Event{
		Kind:      models.EventOpenOrder,
		OpenOrder: &models.OpenOrderEvent{Sequence: seq.Sequence, Orders: orders},
	}, nil
}
