package websocket

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/hixienet"
)

// Defaults applied by New for zero-valued ServerConfig fields.
const (
	DefaultPollInterval        = 10 * time.Millisecond
	DefaultHandshakeTimeout    = 5 * time.Second
	DefaultHandshakeBufferSize = 4096
	DefaultWriteTimeout        = 10 * time.Second

	readBufferSize = 4096
	// drainGrace bounds every read after the first one of a drain pass.
	drainGrace = time.Millisecond
)

// CheckOriginFn validates the Origin header of an upgrade request.
// Returning false aborts the handshake without a response.
type CheckOriginFn = func(origin string) bool

// OnConnectFn is called after a client's handshake response has been sent
// and before its read loop starts. It runs on the client's goroutine; avoid
// long-running work here.
type OnConnectFn = func(client hixienet.Client)

// OnClientDisconnectFn is called when a client that completed its handshake
// disconnects. voluntary is true when the peer closed the connection or the
// socket failed, and false when the server stopped the client.
type OnClientDisconnectFn = func(client hixienet.Client, voluntary bool)

type ServerConfig struct {
	// Host is bound and advertised in Sec-WebSocket-Location. Empty means
	// hixienet.DefaultHost.
	Host string
	// Port to listen on. Zero picks an ephemeral port, which is then
	// advertised.
	Port int

	// RateLimitConfig limits incoming messages per client. Nil disables it.
	RateLimitConfig    *RateLimitConfig
	CheckOrigin        CheckOriginFn
	OnConnect          OnConnectFn
	OnClientDisconnect OnClientDisconnectFn
	Logger             *zap.Logger

	// PollInterval is the longest a read or accept attempt waits before it is
	// reported as "no data now".
	PollInterval time.Duration
	// HandshakeTimeout bounds how long a client may take to send its
	// complete upgrade request.
	HandshakeTimeout time.Duration
	// HandshakeBufferSize caps the size of the upgrade request.
	HandshakeBufferSize int
	// WriteTimeout bounds every frame write unless the caller's context has
	// an earlier deadline.
	WriteTimeout time.Duration
}

// RateLimitConfig defines rate limiting configuration for clients
type RateLimitConfig struct {
	// MessagesPerSecond defines how many messages a client can send per second
	MessagesPerSecond rate.Limit
	// Burst defines the maximum burst size (token bucket capacity)
	Burst int
	// Enabled determines if rate limiting is active
	Enabled bool
}

// DefaultRateLimitConfig returns an opt-in preset allowing 100 messages per
// second with burst of 200. A nil RateLimitConfig means no limit.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		MessagesPerSecond: 100,
		Burst:             200,
		Enabled:           true,
	}
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return &RateLimitConfig{
		Enabled: false,
	}
}

func (r *RateLimitConfig) limiter() *rate.Limiter {
	if r == nil || !r.Enabled {
		return nil
	}
	return rate.NewLimiter(r.MessagesPerSecond, r.Burst)
}

// normalize returns a copy of cfg with every unset field defaulted.
func normalize(cfg *ServerConfig) *ServerConfig {
	out := ServerConfig{}
	if cfg != nil {
		out = *cfg
	}

	if out.Host == "" {
		out.Host = hixienet.DefaultHost
	}
	if out.RateLimitConfig == nil {
		out.RateLimitConfig = NoRateLimit()
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	if out.PollInterval <= 0 {
		out.PollInterval = DefaultPollInterval
	}
	if out.HandshakeTimeout <= 0 {
		out.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if out.HandshakeBufferSize <= 0 {
		out.HandshakeBufferSize = DefaultHandshakeBufferSize
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = DefaultWriteTimeout
	}
	return &out
}
