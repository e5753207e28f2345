package hixienet

import "context"

// State is the lifecycle position of a single client connection.
//
// A connection starts in ConnectionEstablished, moves to Ready exactly once
// after a successful handshake, and ends in Disconnected. NotConnected is only
// reached when the handshake is abandoned. Both Disconnected and NotConnected
// are terminal.
type State int32

const (
	NotConnected State = iota
	ConnectionEstablished
	Ready
	Disconnected
)

func (s State) String() string {
	switch s {
	case NotConnected:
		return "not-connected"
	case ConnectionEstablished:
		return "connection-established"
	case Ready:
		return "ready"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible from s.
func (s State) Terminal() bool {
	return s == NotConnected || s == Disconnected
}

// WebsocketServer defines the interface for a draft-76 WebSocket server.
//
// Messages exchanged with clients are plain text frames delimited by a 0x00
// start byte and a 0xFF end byte.
//
// Example usage:
//
//	import "github.com/luciancaetano/hixienet/ws"
//
//	server := ws.New(ws.NewConfig("localhost", 8080, ws.DefaultRateLimitConfig(), ws.AllOrigins(), nil, nil))
//
//	server.OnDataReceived(func(id uint64, text string) {
//	    server.SendAll(context.Background(), text)
//	})
//
//	server.Start(ctx)
type WebsocketServer interface {
	// Start binds the listening socket and begins accepting connections in the
	// background. The server keeps running until Stop is called or ctx is
	// cancelled.
	//
	// Returns an error if the server is already running or if the address
	// cannot be bound.
	Start(ctx context.Context) error

	// Stop instructs every client to stop, closes the listening socket and
	// waits for the connection goroutines to finish or ctx to expire. It may
	// be called from an event handler; the handler's own goroutine is then
	// not waited for.
	Stop(ctx context.Context) error

	// SendTo sends a text frame to a single client.
	//
	// Returns an error wrapping ErrClientNotFound if id is not registered,
	// including the case where the client went away while the frame was
	// being written.
	SendTo(ctx context.Context, id uint64, text string) error

	// SendAll sends a text frame to every registered client. It returns
	// ErrServerNotRunning when the server is stopped. A failure for one
	// client never prevents delivery attempts to the others; all failures are
	// joined into the returned error.
	SendAll(ctx context.Context, text string) error

	// OnClientConnected subscribes fn to handshake completions.
	//
	// Handlers run synchronously on the client's own goroutine, in
	// registration order. A slow handler stalls that client's read loop.
	OnClientConnected(fn func(id uint64)) (unsubscribe func())

	// OnClientDisconnected subscribes fn to disconnects of clients that had
	// completed their handshake. Abandoned handshakes are not reported.
	OnClientDisconnected(fn func(id uint64)) (unsubscribe func())

	// OnDataReceived subscribes fn to every decoded text message.
	OnDataReceived(fn func(id uint64, text string)) (unsubscribe func())
}

// Client represents one accepted connection.
//
// The identifier is assigned when the socket is accepted and is never reused
// for the lifetime of the server, even after the client disconnects.
type Client interface {
	// ID returns the server-scoped identifier of the client.
	ID() uint64

	// RemoteAddr returns the client's remote network address, typically
	// "IP:port".
	RemoteAddr() string

	// Resource returns the path requested in the upgrade request line, or an
	// empty string before the handshake completes.
	Resource() string

	// Origin returns the Origin header of the upgrade request.
	Origin() string

	// State returns the current lifecycle state.
	State() State

	// Send writes a single text frame synchronously.
	//
	// Returns ErrConnectionClosed if the client is not Ready. A write failure
	// is fatal for the client: it is stopped before the error is returned.
	Send(ctx context.Context, text string) error

	// Stop closes the underlying socket. It is safe to call more than once.
	Stop() error

	// IsAlive returns true while the client is Ready.
	IsAlive() bool
}
