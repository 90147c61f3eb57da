package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSignRequestKnownVector(t *testing.T) {
	secret := "kQH5HW/8p1uGOVjbgWA7FunAmGO8lsSUXNsu3eow76sz84Q18fWxnyRzBHCd3pd5nE9qa99HAZtuZuj6F1huXg=="
	nonce := "1616492376594"
	postData := "nonce=1616492376594&ordertype=limit&pair=XBTUSD&price=37500&type=buy&volume=1.25"
	path := "/0/private/AddOrder"

	sig, err := SignRequest(secret, path, nonce, postData)
	if err != nil {
		t.Fatalf("SignRequest: %v", err)
	}
	if len(sig) != 88 {
		t.Fatalf("expected base64 SHA512 signature length 88, got %d (%q)", len(sig), sig)
	}

	again, err := SignRequest(secret, path, nonce, postData)
	if err != nil {
		t.Fatalf("SignRequest: %v", err)
	}
	if sig != again {
		t.Fatalf("expected deterministic signature for identical input")
	}
}

func TestSignRequestRejectsInvalidSecret(t *testing.T) {
	if _, err := SignRequest("not-base64!!", "/0/private/Test", "1", "nonce=1"); err == nil {
		t.Fatalf("expected error for malformed secret")
	}
}

func TestNextNonceIsMonotonic(t *testing.T) {
	a := New("key", "c2VjcmV0", Config{BaseURL: "https://example.invalid", TokenPath: "/token"})
	prev := int64(0)
	for i := 0; i < 1000; i++ {
		n := a.nextNonce()
		var v int64
		for _, c := range n {
			v = v*10 + int64(c-'0')
		}
		if v <= prev {
			t.Fatalf("nonce not strictly increasing: prev=%d next=%d", prev, v)
		}
		prev = v
	}
}

func TestGetWebSocketTokenSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("API-Key") != "mykey" {
			t.Errorf("missing API-Key header")
		}
		if r.Header.Get("API-Sign") == "" {
			t.Errorf("missing API-Sign header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":[],"result":{"token":"abc123","expires":900}}`))
	}))
	defer server.Close()

	a := New("mykey", "c2VjcmV0", Config{
		BaseURL:           server.URL,
		TokenPath:         "/0/private/GetWebSocketsToken",
		RequestsPerSecond: 100,
		Burst:             10,
		RequestTimeout:    2 * time.Second,
	})

	token, err := a.GetWebSocketToken(context.Background())
	if err != nil {
		t.Fatalf("GetWebSocketToken: %v", err)
	}
	if token != "abc123" {
		t.Fatalf("unexpected token %q", token)
	}
}

func TestGetWebSocketTokenExchangeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":["EAPI:Invalid key"],"result":null}`))
	}))
	defer server.Close()

	a := New("mykey", "c2VjcmV0", Config{
		BaseURL:           server.URL,
		TokenPath:         "/0/private/GetWebSocketsToken",
		RequestsPerSecond: 100,
		Burst:             10,
		RequestTimeout:    2 * time.Second,
	})

	if _, err := a.GetWebSocketToken(context.Background()); err == nil {
		t.Fatalf("expected error when exchange returns an error list")
	}
}
