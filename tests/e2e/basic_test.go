package e2e_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/luciancaetano/hixienet"
	"github.com/luciancaetano/hixienet/ws"
)

func TestBasicEcho(t *testing.T) {
	t.Parallel()

	server := startServer(t, ws.DefaultRateLimitConfig())
	server.OnDataReceived(func(id uint64, text string) {
		server.SendTo(context.Background(), id, text)
	})

	conn := dial(t, server, "/ws")

	if err := conn.WriteText("Hello!"); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}
	if got := read(t, conn); got != "Hello!" {
		t.Errorf("got %q, want %q", got, "Hello!")
	}

	want := fmt.Sprintf("ws://127.0.0.1:%d/ws", server.Port())
	if conn.Location() != want {
		t.Errorf("Location() = %q, want %q", conn.Location(), want)
	}
}

func TestBroadcast(t *testing.T) {
	t.Parallel()

	server := startServer(t, ws.NoRateLimit())
	server.OnDataReceived(func(id uint64, text string) {
		server.SendAll(context.Background(), fmt.Sprintf("%d: %s", id, text))
	})

	const n = 5
	conns := make([]*ws.Conn, n)
	for i := range conns {
		conns[i] = dial(t, server, "/chat")
	}
	waitFor(t, "all clients", func() bool { return len(server.Clients()) == n })

	if err := conns[2].WriteText("hi all"); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}
	for i, c := range conns {
		if got := read(t, c); got != "2: hi all" {
			t.Errorf("conn %d got %q", i, got)
		}
	}
}

func TestLifecycleEvents(t *testing.T) {
	t.Parallel()

	server := startServer(t, ws.NoRateLimit())

	var mu sync.Mutex
	var events []string
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}
	server.OnClientConnected(func(id uint64) { record(fmt.Sprintf("connected %d", id)) })
	server.OnDataReceived(func(id uint64, text string) { record(fmt.Sprintf("data %d %s", id, text)) })
	server.OnClientDisconnected(func(id uint64) { record(fmt.Sprintf("disconnected %d", id)) })

	conn := dial(t, server, "/")
	conn.WriteText("a")
	conn.WriteText("b")
	waitFor(t, "messages", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 3
	})
	conn.Close()

	waitFor(t, "disconnect", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 4
	})

	mu.Lock()
	defer mu.Unlock()
	want := []string{"connected 0", "data 0 a", "data 0 b", "disconnected 0"}
	if strings.Join(events, "|") != strings.Join(want, "|") {
		t.Errorf("events = %q, want %q", events, want)
	}
}

func TestSendToGoneClient(t *testing.T) {
	t.Parallel()

	server := startServer(t, ws.NoRateLimit())
	gone := make(chan uint64, 1)
	server.OnClientDisconnected(func(id uint64) { gone <- id })

	conn := dial(t, server, "/")
	waitFor(t, "registration", func() bool { return len(server.Clients()) == 1 })
	conn.Close()

	var id uint64
	select {
	case id = <-gone:
	case <-time.After(5 * time.Second):
		t.Fatal("no disconnect event")
	}

	if err := server.SendTo(context.Background(), id, "anyone?"); !errors.Is(err, hixienet.ErrClientNotFound) {
		t.Errorf("SendTo() = %v, want ErrClientNotFound", err)
	}
}

func TestRejectedOrigin(t *testing.T) {
	t.Parallel()

	cfg := ws.NewConfig("127.0.0.1", 0, ws.NoRateLimit(), ws.SameOrigins("http://trusted.example"), nil, nil)
	server := ws.NewServer(cfg)
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop(context.Background())

	url := fmt.Sprintf("ws://127.0.0.1:%d/", server.Port())

	if _, err := newDialer().Dial(context.Background(), url); !errors.Is(err, ws.ErrBadHandshake) {
		t.Errorf("Dial() from untrusted origin = %v, want ErrBadHandshake", err)
	}

	trusted := &ws.Dialer{Origin: "http://trusted.example"}
	conn, err := trusted.Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("Dial() from trusted origin = %v", err)
	}
	conn.Close()
}
