package aggregator

import (
	"testing"

	"krakenfeed/models"
)

func trade(price, volume, t string) models.Trade {
	return models.Trade{Price: price, Volume: volume, Time: t}
}

func TestUpdateAccumulatesWithinInterval(t *testing.T) {
	a := New("XBT/USD", 60)

	if closed := a.Update(trade("100.0", "1.0", "10")); closed != nil {
		t.Fatalf("expected no closed candle on first trade, got %+v", closed)
	}
	a.Update(trade("105.0", "2.0", "20"))
	a.Update(trade("95.0", "1.0", "30"))

	c := a.Current()
	if c.Open != 100.0 || c.High != 105.0 || c.Low != 95.0 || c.Close != 95.0 {
		t.Fatalf("unexpected candle: %+v", c)
	}
	if c.Volume != 4.0 {
		t.Fatalf("expected accumulated volume 4.0, got %v", c.Volume)
	}
}

func TestUpdateClosesCandleOnNewInterval(t *testing.T) {
	a := New("XBT/USD", 60)
	a.Update(trade("100.0", "1.0", "10"))

	closed := a.Update(trade("110.0", "1.0", "65"))
	if closed == nil {
		t.Fatalf("expected the first candle to close when crossing the interval boundary")
	}
	if closed.StartTime != 0 || closed.Close != 100.0 {
		t.Fatalf("unexpected closed candle: %+v", closed)
	}

	current := a.Current()
	if current.StartTime != 60 || current.Open != 110.0 {
		t.Fatalf("expected a fresh candle for the new interval: %+v", current)
	}
}
