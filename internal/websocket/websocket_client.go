package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/hixienet"
	"github.com/luciancaetano/hixienet/internal/handshake"
	"github.com/luciancaetano/hixienet/internal/hook"
	"github.com/luciancaetano/hixienet/internal/protocol"
)

// ClientMessage is a decoded text frame together with the client that sent it.
type ClientMessage struct {
	Client *Client
	Text   string
}

var _ hixienet.Client = (*Client)(nil)

// Client implements the hixienet.Client interface. It owns one accepted
// socket and drives it from handshake to disconnect on the goroutine that
// calls Run.
type Client struct {
	id          uint64
	conn        net.Conn
	remoteAddr  string
	host        string
	port        int
	cfg         *ServerConfig
	logger      *zap.Logger
	rateLimiter *rate.Limiter // Rate limiter for incoming messages
	readBuf     []byte

	mu             sync.RWMutex
	state          hixienet.State
	request        *handshake.Request
	pending        []byte // frame bytes that arrived with the handshake
	owesDisconnect bool
	voluntary      bool

	writeMu sync.Mutex

	// dispatching is non-zero while an event handler runs on the Run goroutine
	dispatching atomic.Int32
	exited      chan struct{}

	connected    hook.Hook[*Client]
	disconnected hook.Hook[*Client]
	received     hook.Hook[ClientMessage]
}

// NewClient wraps conn in a Client in the ConnectionEstablished state. host
// and port are the location the server advertises in its handshake response.
func NewClient(id uint64, conn net.Conn, host string, port int, cfg *ServerConfig) *Client {
	cfg = normalize(cfg)

	remoteAddr := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remoteAddr = addr.String()
	}

	return &Client{
		id:          id,
		conn:        conn,
		remoteAddr:  remoteAddr,
		host:        host,
		port:        port,
		cfg:         cfg,
		logger:      cfg.Logger.With(zap.Uint64("client_id", id), zap.String("remote_addr", remoteAddr)),
		rateLimiter: cfg.RateLimitConfig.limiter(),
		readBuf:     make([]byte, readBufferSize),
		state:       hixienet.ConnectionEstablished,
		exited:      make(chan struct{}),
	}
}

// ID returns the server-scoped identifier of the client
func (c *Client) ID() uint64 {
	return c.id
}

// RemoteAddr returns the client's remote network address
func (c *Client) RemoteAddr() string {
	return c.remoteAddr
}

// Resource returns the requested path once the handshake has been parsed.
func (c *Client) Resource() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.request == nil {
		return ""
	}
	return c.request.Resource
}

// Origin returns the Origin header once the handshake has been parsed.
func (c *Client) Origin() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.request == nil {
		return ""
	}
	return c.request.Origin()
}

// Request returns the parsed upgrade request, or nil before the handshake.
func (c *Client) Request() *handshake.Request {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.request
}

func (c *Client) State() hixienet.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsAlive returns true while the client is Ready
func (c *Client) IsAlive() bool {
	return c.State() == hixienet.Ready
}

// OnConnected subscribes fn to the handshake completion of this client.
func (c *Client) OnConnected(fn func(*Client)) (unsubscribe func()) {
	return c.connected.Subscribe(fn)
}

// OnDisconnected subscribes fn to the disconnect of this client. It fires at
// most once, and only if the client reached Ready.
func (c *Client) OnDisconnected(fn func(*Client)) (unsubscribe func()) {
	return c.disconnected.Subscribe(fn)
}

// OnMessage subscribes fn to every decoded text frame.
func (c *Client) OnMessage(fn func(ClientMessage)) (unsubscribe func()) {
	return c.received.Subscribe(fn)
}

// Voluntary reports whether the client went away on its own rather than
// being stopped by the server.
func (c *Client) Voluntary() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.voluntary
}

// Run drives the client until it is stopped, the peer goes away or ctx is
// cancelled. All three client events fire on the calling goroutine; the
// disconnect event, when owed, fires last, just before Run returns.
func (c *Client) Run(ctx context.Context) {
	defer close(c.exited)
	stopWatch := context.AfterFunc(ctx, func() { c.Stop() })
	defer stopWatch()
	defer c.finish()

	for !c.State().Terminal() {
		if c.State() != hixienet.Ready {
			if err := c.handshake(); err != nil {
				c.logger.Warn("handshake aborted", zap.Error(err))
				c.Stop()
			}
			continue
		}

		if err := c.poll(); err != nil {
			switch {
			case errors.Is(err, net.ErrClosed), errors.Is(err, hixienet.ErrRateLimited):
			default:
				c.logger.Debug("connection lost", zap.Error(err))
				c.markVoluntary()
			}
			c.Stop()
		}
	}
}

// Send encodes text as a frame and writes it synchronously
func (c *Client) Send(ctx context.Context, text string) error {
	if !c.IsAlive() {
		return hixienet.ErrConnectionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.write(protocol.Encode(text), deadline); err != nil {
		c.logger.Debug("send failed", zap.Error(err))
		if !errors.Is(err, net.ErrClosed) {
			c.markVoluntary()
		}
		c.Stop()
		return fmt.Errorf("%w: %w", hixienet.ErrConnectionClosed, err)
	}
	return nil
}

// Stop closes the socket. A Ready client becomes Disconnected and owes its
// disconnect event, which Run delivers; any other live state becomes
// NotConnected silently. Stopping a stopped client is a no-op.
func (c *Client) Stop() error {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return nil
	}
	if c.state == hixienet.Ready {
		c.state = hixienet.Disconnected
		c.owesDisconnect = true
	} else {
		c.state = hixienet.NotConnected
	}
	// logged under the lock so Run cannot return first
	c.logger.Debug("client stopped", zap.Stringer("state", c.state))
	c.mu.Unlock()

	return c.conn.Close()
}

func (c *Client) markVoluntary() {
	c.mu.Lock()
	if !c.state.Terminal() {
		c.voluntary = true
	}
	c.mu.Unlock()
}

func (c *Client) finish() {
	c.mu.Lock()
	owes := c.owesDisconnect
	c.owesDisconnect = false
	c.mu.Unlock()

	if owes {
		c.logger.Info("client disconnected")
		c.dispatch(func() { c.disconnected.Fire(c) })
	}
}

// handshake performs the upgrade exactly once. Nothing is written to the
// socket unless the request is valid.
func (c *Client) handshake() error {
	raw, err := c.readHandshake()
	if err != nil {
		return err
	}

	req, err := handshake.Parse(raw)
	if err != nil {
		return err
	}

	if c.cfg.CheckOrigin != nil && !c.cfg.CheckOrigin(req.Origin()) {
		return fmt.Errorf("%w: %q", hixienet.ErrOriginRejected, req.Origin())
	}

	response, err := req.Response(c.host, c.port)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.request = req
	if n := handshake.Length(raw); n < len(raw) {
		c.pending = append([]byte(nil), raw[n:]...)
	}
	c.mu.Unlock()

	if err := c.write(response, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return fmt.Errorf("write handshake: %w", err)
	}

	c.mu.Lock()
	if c.state != hixienet.ConnectionEstablished {
		c.mu.Unlock()
		return hixienet.ErrConnectionClosed
	}
	c.state = hixienet.Ready
	c.mu.Unlock()

	c.logger.Info("client connected", zap.String("resource", req.Resource), zap.String("origin", req.Origin()))
	c.dispatch(func() { c.connected.Fire(c) })
	return nil
}

// readHandshake accumulates reads until the request is complete, the buffer
// limit is hit or the handshake timeout expires.
func (c *Client) readHandshake() ([]byte, error) {
	limit := c.cfg.HandshakeBufferSize
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout)); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, limit)
	for !handshake.Complete(buf) && len(buf) < limit {
		n, err := c.conn.Read(buf[len(buf):limit])
		buf = buf[:len(buf)+n]
		if err != nil {
			if handshake.Complete(buf) {
				break
			}
			return nil, fmt.Errorf("read handshake: %w", err)
		}
	}
	return buf, nil
}

// poll drains whatever the socket has right now and dispatches the decoded
// messages. A pass with nothing to read returns nil.
func (c *Client) poll() error {
	data, err := c.drain()

	for msg := range protocol.Decode(data) {
		if !c.IsAlive() {
			return nil
		}
		if c.rateLimiter != nil && !c.rateLimiter.Allow() {
			c.logger.Warn("rate limit exceeded")
			return hixienet.ErrRateLimited
		}
		c.logger.Debug("message received", zap.Int("bytes", len(msg)))
		c.dispatch(func() { c.received.Fire(ClientMessage{Client: c, Text: msg}) })
	}
	return err
}

// drain reads until the socket reports it has nothing more to offer. The
// first read waits up to PollInterval so an idle client does not spin.
func (c *Client) drain() ([]byte, error) {
	c.mu.Lock()
	data := c.pending
	c.pending = nil
	c.mu.Unlock()

	wait := c.cfg.PollInterval
	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
			return data, err
		}
		n, err := c.conn.Read(c.readBuf)
		data = append(data, c.readBuf[:n]...)
		if err != nil {
			if isTransient(err) {
				return data, nil
			}
			return data, err
		}
		wait = drainGrace
	}
}

// Exited is closed once Run has returned.
func (c *Client) Exited() <-chan struct{} {
	return c.exited
}

// InHandler reports whether an event handler is running on the client's
// goroutine right now.
func (c *Client) InHandler() bool {
	return c.dispatching.Load() > 0
}

func (c *Client) dispatch(fire func()) {
	c.dispatching.Add(1)
	defer c.dispatching.Add(-1)
	fire()
}

func (c *Client) write(b []byte, deadline time.Time) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	_, err := c.conn.Write(b)
	return err
}
