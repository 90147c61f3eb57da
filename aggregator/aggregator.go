// Package aggregator builds OHLC candles locally from a stream of trade
// prints, for callers who only subscribed to the trade channel and want
// candles on an interval the server doesn't publish natively. This
// supplements the teacher's distilled spec with a feature present in the
// original Rust SDK's TradeAggregator.
package aggregator

import (
	"strconv"

	"krakenfeed/models"
)

// Candle is one OHLC bar built from trade prints.
type Candle struct {
	Symbol                 models.Symbol
	StartTime              int64
	IntervalSeconds        int64
	Open, High, Low, Close float64
	Volume                 float64
}

// TradeAggregator folds a stream of trades for one symbol into fixed-width
// candles. It is not goroutine-safe; wrap it with your own locking (or
// drive it from a single consumer of Client.Events) if shared.
type TradeAggregator struct {
	symbol          models.Symbol
	intervalSeconds int64
	current         *Candle
}

// New creates an aggregator that buckets trades into candles intervalSeconds
// wide.
func New(symbol models.Symbol, intervalSeconds int64) *TradeAggregator {
	return &TradeAggregator{symbol: symbol, intervalSeconds: intervalSeconds}
}

// Update folds one trade into the aggregator, returning the candle that
// just closed if this trade belongs to a later interval than the one in
// progress.
func (a *TradeAggregator) Update(trade models.Trade) *Candle {
	price := parseFloat(trade.Price)
	volume := parseFloat(trade.Volume)
	tradeTime := int64(parseFloat(trade.Time))

	start := (tradeTime / a.intervalSeconds) * a.intervalSeconds

	var closed *Candle
	if a.current != nil && a.current.StartTime != start {
		closed = a.current
		a.current = nil
	}

	if a.current == nil {
		a.current = &Candle{
			Symbol:          a.symbol,
			StartTime:       start,
			IntervalSeconds: a.intervalSeconds,
			Open:            price,
			High:            price,
			Low:             price,
			Close:           price,
			Volume:          volume,
		}
		return closed
	}

	if price > a.current.High {
		a.current.High = price
	}
	if price < a.current.Low {
		a.current.Low = price
	}
	a.current.Close = price
	a.current.Volume += volume
	return closed
}

// Current returns the in-progress candle, if any.
func (a *TradeAggregator) Current() *Candle {
	return a.current
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
