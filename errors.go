package hixienet

import "errors"

// Wire protocol tokens.
const (
	// UpgradeToken is the only Upgrade header value accepted by the handshake.
	UpgradeToken = "WebSocket"

	// DefaultHost is advertised and bound when no host is configured.
	DefaultHost = "localhost"

	// ListenBacklog is the pending connection queue size requested for the
	// listening socket.
	ListenBacklog = 5
)

// Connection errors
var (
	ErrClientNotFound       = errors.New("client not found")
	ErrConnectionClosed     = errors.New("client connection is closed")
	ErrServerAlreadyRunning = errors.New("server already running")
	ErrServerNotRunning     = errors.New("server not running")
	ErrRateLimited          = errors.New("rate limit exceeded")
	ErrOriginRejected       = errors.New("origin rejected")
)
