package wire

import (
	"fmt"

	"github.com/bytedance/sonic"

	"krakenfeed/models"
)

type subscriptionDetail struct {
	Name     string `json:"name"`
	Depth    int    `json:"depth,omitempty"`
	Interval int    `json:"interval,omitempty"`
	Token    string `json:"token,omitempty"`
}

type subscribeFrame struct {
	Event        string             `json:"event"`
	ReqID        uint64             `json:"reqid,omitempty"`
	Pair         []string           `json:"pair,omitempty"`
	Subscription subscriptionDetail `json:"subscription"`
}

type pingFrame struct {
	Event string `json:"event"`
	ReqID uint64 `json:"reqid,omitempty"`
}

// EncodeSubscribe builds a "subscribe" control frame for the given
// subscription. reqID lets the caller correlate the eventual
// subscriptionStatus reply (spec.md §4.6).
func EncodeSubscribe(sub models.Subscription, reqID uint64) ([]byte, error) {
	frame := subscribeFrame{
		Event:        "subscribe",
		ReqID:        reqID,
		Subscription: detailFor(sub),
	}
	if !sub.IsPrivate() {
		frame.Pair = []string{string(sub.Symbol)}
	}
	data, err := sonic.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("wire: encode subscribe: %w", err)
	}
	return data, nil
}

// EncodeUnsubscribe builds an "unsubscribe" control frame.
func EncodeUnsubscribe(sub models.Subscription, reqID uint64) ([]byte, error) {
	frame := subscribeFrame{
		Event:        "unsubscribe",
		ReqID:        reqID,
		Subscription: detailFor(sub),
	}
	if !sub.IsPrivate() {
		frame.Pair = []string{string(sub.Symbol)}
	}
	data, err := sonic.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("wire: encode unsubscribe: %w", err)
	}
	return data, nil
}

// EncodePing builds a "ping" control frame. The event loop sends one on
// every tick of its heartbeat-interval ticker, whether or not a heartbeat
// arrived in the meantime.
func EncodePing(reqID uint64) ([]byte, error) {
	data, err := sonic.Marshal(pingFrame{Event: "ping", ReqID: reqID})
	if err != nil {
		return nil, fmt.Errorf("wire: encode ping: %w", err)
	}
	return data, nil
}

func detailFor(sub models.Subscription) subscriptionDetail {
	d := subscriptionDetail{Name: string(sub.Channel)}
	if sub.Channel == models.ChannelBook && sub.Depth > 0 {
		d.Depth = sub.Depth
	}
	if sub.Channel == models.ChannelOHLC && sub.Interval > 0 {
		d.Interval = sub.Interval
	}
	if sub.IsPrivate() {
		d.Token = sub.Token
	}
	return d
}
