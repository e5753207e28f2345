// Package hixienet provides a server for the early, pre-RFC WebSocket
// protocol (draft-hixie-thewebsocketprotocol-76).
//
// It is meant for talking to legacy clients that only speak draft 76, such as
// old embedded browsers and set-top boxes. It does not negotiate RFC 6455.
//
// # Architecture
//
// The server listens on a single TCP port. Every accepted socket gets its own
// goroutine, which performs the upgrade handshake and then reads text frames
// until the peer goes away or the server stops it. Accept and read calls use
// short deadlines, so a goroutine never blocks for longer than the configured
// poll interval and notices a stop request promptly.
//
// Applications observe the server through three events:
//
//   - OnClientConnected: the handshake response was sent, the client is Ready
//   - OnDataReceived: one decoded text message
//   - OnClientDisconnected: a Ready client went away, reported exactly once
//
// All events of one client are delivered on that client's goroutine, in order.
// Events of different clients may run concurrently.
//
// # Quick Start
//
//	import (
//	    "github.com/luciancaetano/hixienet/ws"
//	)
//
//	server := ws.New(ws.NewConfig("localhost", 8080, ws.DefaultRateLimitConfig(), ws.AllOrigins(), nil, nil))
//
//	server.OnClientConnected(func(id uint64) {
//	    server.SendTo(ctx, id, "welcome")
//	})
//	server.OnDataReceived(func(id uint64, text string) {
//	    server.SendAll(ctx, text)
//	})
//
//	server.Start(ctx)
//
// # Handshake
//
// The client sends an HTTP GET request with Upgrade: WebSocket, two
// Sec-WebSocket-Key headers and an Origin header, followed by eight bytes of
// entropy. Each key is reduced to a number by concatenating its digits and
// dividing by its count of spaces. The server answers with a 101 response
// echoing the origin and the ws:// location, followed by the MD5 digest of
// both numbers (big-endian) and the entropy.
//
// A malformed request gets no response at all: the socket is closed and no
// event fires.
//
// # Frame Format
//
// Every message is UTF-8 text framed as
//
//	[0x00][UTF-8 bytes][0xFF]
//
// Binary frames and closing handshakes are not supported.
//
// # Rate Limiting
//
// Rate limiting is off unless configured. When enabled, each client has its
// own token bucket:
//
//	// Preset: 100 messages/second, burst 200
//	rateLimitConfig := ws.DefaultRateLimitConfig()
//
//	// Custom: 50 messages/second, burst 100
//	rateLimitConfig := &ws.RateLimitConfig{
//	    MessagesPerSecond: 50,
//	    Burst:             100,
//	    Enabled:           true,
//	}
//
//	// Disabled, same as nil
//	rateLimitConfig := ws.NoRateLimit()
//
// A client exceeding its limit is disconnected.
//
// # Configuration
//
// ws.ConfigFromEnv reads host, port, timeouts and rate limits from
// environment variables sharing a prefix:
//
//	cfg, err := ws.ConfigFromEnv("HIXIE") // HIXIE_PORT=8080 HIXIE_RATE_LIMIT_BURST=50
//
// # Important
//
//   - Event handlers run on the client's read goroutine. A slow handler delays
//     that client's next read; use hook.Buffered-style queues for slow work.
//   - Client identifiers are never reused while the server lives.
//   - Configure CheckOriginFn in production (never use ws.AllOrigins() in production)
package hixienet
