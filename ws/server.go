package ws

import (
	"github.com/luciancaetano/hixienet"
	"github.com/luciancaetano/hixienet/internal/websocket"
)

type RateLimitConfig = websocket.RateLimitConfig
type CheckOriginFn = websocket.CheckOriginFn
type OnConnectFn = websocket.OnConnectFn
type OnDisconnectFn = websocket.OnClientDisconnectFn
type ServerConfig = *websocket.ServerConfig

// Server is the concrete server returned by NewServer. It adds introspection
// (Addr, Port, Clients, Done) on top of hixienet.WebsocketServer.
type Server = websocket.Server

// Message is a text frame tagged with its sender, as delivered by
// Server.OnMessage.
type Message = websocket.Message

// New creates a new draft-76 WebSocket server.
//
// Parameters:
//   - cfg: Server configuration built with NewConfig or ConfigFromEnv. A nil
//     cfg listens on localhost with an ephemeral port and no rate limit.
//
// Example:
//
//	server := ws.New(ws.NewConfig("localhost", 8080, ws.DefaultRateLimitConfig(), ws.AllOrigins(), nil, nil))
//	server.OnDataReceived(func(id uint64, text string) {
//	    server.SendTo(ctx, id, text)
//	})
//	server.Start(ctx)
func New(cfg ServerConfig) hixienet.WebsocketServer {
	return websocket.New(cfg)
}

// NewServer is like New but returns the concrete server type.
func NewServer(cfg ServerConfig) *Server {
	return websocket.New(cfg)
}

// NewConfig builds a server configuration.
//
// Parameters:
//   - host: Interface to bind, also advertised in Sec-WebSocket-Location
//   - port: Port to listen on; 0 picks an ephemeral port
//   - rateLimitConfig: Use DefaultRateLimitConfig() or NoRateLimit(). Nil disables rate limiting.
//   - checkOrigin: Validates the Origin header. Use AllOrigins() to allow all (dev only)
//   - onConnect: Optional, called after the handshake response is sent. Can be nil.
//   - onDisconnect: Optional, called when a connected client goes away. Can be nil.
func NewConfig(host string, port int, rateLimitConfig *RateLimitConfig, checkOrigin CheckOriginFn, onConnect OnConnectFn, onDisconnect OnDisconnectFn) ServerConfig {
	return &websocket.ServerConfig{
		Host:               host,
		Port:               port,
		RateLimitConfig:    rateLimitConfig,
		CheckOrigin:        checkOrigin,
		OnConnect:          onConnect,
		OnClientDisconnect: onDisconnect,
	}
}

// AllOrigins returns the default checkOrigin function that allows all origins
func AllOrigins() CheckOriginFn {
	return func(origin string) bool {
		return true
	}
}

// SameOrigins returns a checkOrigin function accepting only the listed
// origins, compared exactly.
func SameOrigins(origins ...string) CheckOriginFn {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(origin string) bool {
		_, ok := allowed[origin]
		return ok
	}
}

// DefaultRateLimitConfig returns the preset of 100 messages per second with a
// burst of 200. It is opt-in; a nil RateLimitConfig disables rate limiting.
func DefaultRateLimitConfig() *RateLimitConfig {
	return websocket.DefaultRateLimitConfig()
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return websocket.NoRateLimit()
}
