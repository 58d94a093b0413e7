package transport

import (
	"context"
	"testing"
	"time"

	"tank-tracker/internal/config"

	"github.com/rs/zerolog"
)

func TestGatewayFallsBackWhenNotConnected(t *testing.T) {
	rest, requests := newRESTFixture(t, 200, `{"success": true, "battles": {}, "players": {}}`)
	socket := NewSocketClient(&config.Config{SocketURL: "ws://127.0.0.1:1", SocketAckTimeout: time.Second},
		AccessKey("test-key"), zerolog.Nop())
	gw := NewGateway(socket, rest, zerolog.Nop())

	if gw.Connected() {
		t.Fatal("gateway must report disconnected")
	}
	if _, err := gw.FetchStats(context.Background()); err != nil {
		t.Fatalf("FetchStats() = %v", err)
	}
	if len(*requests) != 1 {
		t.Errorf("rest requests = %d, want 1", len(*requests))
	}
}

func TestGatewayFallsBackOnAckTimeout(t *testing.T) {
	rest, requests := newRESTFixture(t, 200, `{"success": true}`)
	_, srv := newFakeBackend(t, func(f frame) *frame {
		return nil // connected, but never acks
	})
	socket := startClient(t, srv, 50*time.Millisecond)
	gw := NewGateway(socket, rest, zerolog.Nop())

	if !gw.Connected() {
		t.Fatal("gateway must report connected")
	}
	if err := gw.PushStats(context.Background(), []byte(`{"battles": {}}`)); err != nil {
		t.Fatalf("PushStats() = %v", err)
	}
	if len(*requests) != 1 {
		t.Errorf("rest requests = %d, want exactly the fallback push", len(*requests))
	}
}
