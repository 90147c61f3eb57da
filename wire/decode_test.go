package wire

import (
	"strings"
	"testing"

	"krakenfeed/models"
)

func TestDecodeSystemStatus(t *testing.T) {
	raw := []byte(`{"connectionID":123,"event":"systemStatus","status":"online","version":"1.9.0"}`)
	evt, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if evt.Kind != models.EventSystemStatus {
		t.Fatalf("expected EventSystemStatus, got %v", evt.Kind)
	}
	if evt.SystemStatus.Status != "online" {
		t.Fatalf("expected status online, got %q", evt.SystemStatus.Status)
	}
}

func TestDecodeHeartbeat(t *testing.T) {
	evt, err := Decode([]byte(`{"event":"heartbeat"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if evt.Kind != models.EventHeartbeat {
		t.Fatalf("expected EventHeartbeat, got %v", evt.Kind)
	}
}

func TestDecodeSubscriptionStatusSubscribed(t *testing.T) {
	raw := []byte(`{"channelID":336,"channelName":"book-10","event":"subscriptionStatus","pair":"XBT/USD","status":"subscribed","subscription":{"depth":10,"name":"book"}}`)
	evt, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if evt.Kind != models.EventSubscriptionStatus {
		t.Fatalf("expected EventSubscriptionStatus, got %v", evt.Kind)
	}
	if evt.SubscriptionStatus.Kind != models.SubscriptionSubscribed {
		t.Fatalf("expected SubscriptionSubscribed, got %v", evt.SubscriptionStatus.Kind)
	}
	if evt.SubscriptionStatus.Symbol != models.Symbol("XBT/USD") {
		t.Fatalf("unexpected symbol %q", evt.SubscriptionStatus.Symbol)
	}
}

func TestDecodeBookSnapshot(t *testing.T) {
	raw := []byte(`[336,{"as":[["5541.30000","2.50700000","1534614248.123678"],["5541.80000","0.33000000","1534614098.345543"]],"bs":[["5541.20000","1.52900000","1534614248.765567"]]},"book-10","XBT/USD"]`)
	evt, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if evt.Kind != models.EventBookSnapshot {
		t.Fatalf("expected EventBookSnapshot, got %v", evt.Kind)
	}
	if len(evt.Book.Asks) != 2 || len(evt.Book.Bids) != 1 {
		t.Fatalf("unexpected level counts: asks=%d bids=%d", len(evt.Book.Asks), len(evt.Book.Bids))
	}
	if evt.Book.Asks[0].Price != "5541.30000" {
		t.Fatalf("price text mutated: %q", evt.Book.Asks[0].Price)
	}
	if evt.Book.DepthLimit != 10 {
		t.Fatalf("expected depth 10, got %d", evt.Book.DepthLimit)
	}
}

func TestDecodeBookUpdateWithChecksum(t *testing.T) {
	raw := []byte(`[336,{"a":[["5541.30000","2.50700000","1534614248.456738","r"]],"c":"974942666"},"book-10","XBT/USD"]`)
	evt, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if evt.Kind != models.EventBookUpdate {
		t.Fatalf("expected EventBookUpdate, got %v", evt.Kind)
	}
	if !evt.Book.HasChecksum || evt.Book.Checksum != "974942666" {
		t.Fatalf("checksum not decoded: %+v", evt.Book)
	}
	if !evt.Book.Asks[0].Republish {
		t.Fatalf("expected republish flag set")
	}
}

func TestDecodeTrade(t *testing.T) {
	raw := []byte(`[0,[["5541.20000","0.15850568","1534614057.321597","s","l",""]],"trade","XBT/USD"]`)
	evt, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if evt.Kind != models.EventTrade {
		t.Fatalf("expected EventTrade, got %v", evt.Kind)
	}
	if len(evt.Trade.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(evt.Trade.Trades))
	}
	tr := evt.Trade.Trades[0]
	if tr.Side != models.SideSell || tr.OrderType != models.OrderTypeLimit {
		t.Fatalf("unexpected trade fields: %+v", tr)
	}
}

func TestDecodeOwnTrades(t *testing.T) {
	raw := []byte(`[[{"TDLH43-DVQXD-2KHVYY":{"cost":"1000.00000","fee":"1.60000","ordertxid":"OQCLML-BW3P3-BUCMWZ","ordertype":"limit","pair":"XBT/USD","postxid":"OGTT3Y-C6I3P-XRI6HX","price":"100.00000","time":"1560516023.070651","type":"buy","vol":"1.00000000"}}],"ownTrades",{"sequence":1}]`)
	evt, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if evt.Kind != models.EventOwnTrade {
		t.Fatalf("expected EventOwnTrade, got %v", evt.Kind)
	}
	if evt.OwnTrade.Sequence != 1 {
		t.Fatalf("expected sequence 1, got %d", evt.OwnTrade.Sequence)
	}
	if _, ok := evt.OwnTrade.Trades["TDLH43-DVQXD-2KHVYY"]; !ok {
		t.Fatalf("expected trade id present: %+v", evt.OwnTrade.Trades)
	}
}

func TestEncodeSubscribeBook(t *testing.T) {
	sub := models.Subscription{Channel: models.ChannelBook, Symbol: "XBT/USD", Depth: 10}
	data, err := EncodeSubscribe(sub, 42)
	if err != nil {
		t.Fatalf("EncodeSubscribe: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"event":"subscribe"`, `"pair":["XBT/USD"]`, `"depth":10`, `"reqid":42`} {
		if !strings.Contains(s, want) {
			t.Fatalf("encoded frame %s missing %s", s, want)
		}
	}
}

func TestDecodeEmptyFrameErrors(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Fatalf("expected error decoding empty frame")
	}
}
