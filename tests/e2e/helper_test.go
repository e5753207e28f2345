package e2e_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/luciancaetano/hixienet/ws"
)

// Helper function to create a draft-76 dialer
func newDialer() *ws.Dialer {
	return &ws.Dialer{
		HandshakeTimeout: 5 * time.Second,
		Origin:           "http://localhost",
	}
}

// startServer runs a server on an ephemeral loopback port until the test ends.
func startServer(t *testing.T, rl *ws.RateLimitConfig) *ws.Server {
	t.Helper()

	cfg := ws.NewConfig("127.0.0.1", 0, rl, ws.AllOrigins(), nil, nil)
	cfg.Logger = zaptest.NewLogger(t)

	server := ws.NewServer(cfg)
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Stop(stopCtx)
	})
	return server
}

func dial(t *testing.T, server *ws.Server, resource string) *ws.Conn {
	t.Helper()

	url := fmt.Sprintf("ws://127.0.0.1:%d%s", server.Port(), resource)
	conn, err := newDialer().Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *ws.Conn) string {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	text, err := conn.ReadText()
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	return text
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
