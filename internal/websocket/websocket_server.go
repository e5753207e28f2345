package websocket

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/luciancaetano/hixienet"
	"github.com/luciancaetano/hixienet/internal/hook"
)

// Message is a decoded text frame tagged with the identifier of its sender.
type Message struct {
	ClientID uint64
	Text     string
}

var _ hixienet.WebsocketServer = (*Server)(nil)

// Server implements the WebsocketServer interface
type Server struct {
	cfg        *ServerConfig
	instanceID string
	logger     *zap.Logger
	nextID     atomic.Uint64

	mu       sync.RWMutex
	running  bool
	listener *net.TCPListener
	port     int
	cancel   context.CancelFunc
	accepted chan struct{}      // closed when the accept loop exits
	clients  map[uint64]*Client // handshake complete
	sessions map[uint64]*Client // every accepted socket still running
	done     chan struct{}
	err      error
	wg       *sync.WaitGroup // goroutines of the current run

	clientConnected    hook.Hook[uint64]
	clientDisconnected hook.Hook[uint64]
	dataReceived       hook.Hook[Message]
}

// New creates a new server instance with the specified configuration.
// Zero-valued fields of cfg take the package defaults; cfg itself is not
// modified.
func New(cfg *ServerConfig) *Server {
	cfg = normalize(cfg)
	instanceID := uuid.New().String()

	done := make(chan struct{})
	close(done)

	return &Server{
		cfg:        cfg,
		instanceID: instanceID,
		logger:     cfg.Logger.With(zap.String("server_id", instanceID)),
		port:       cfg.Port,
		clients:    make(map[uint64]*Client),
		sessions:   make(map[uint64]*Client),
		done:       done,
	}
}

// Start binds the listening socket and runs the accept loop in the
// background. Cancelling ctx stops the server.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return hixienet.ErrServerAlreadyRunning
	}

	ln, err := s.listen(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.listener = ln
	s.port = ln.Addr().(*net.TCPAddr).Port
	s.cancel = cancel
	s.running = true
	s.done = make(chan struct{})
	s.accepted = make(chan struct{})
	s.wg = new(sync.WaitGroup)
	s.err = nil

	s.logger.Info("waiting for clients", zap.String("location", "ws://"+net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.port))))

	s.wg.Add(1)
	go s.acceptLoop(runCtx, ln, s.wg, s.accepted)
	return nil
}

func (s *Server) listen(ctx context.Context) (*net.TCPListener, error) {
	lc := net.ListenConfig{Control: reuseAddr}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	ln := l.(*net.TCPListener)

	if rc, err := ln.SyscallConn(); err == nil {
		if err := setBacklog(rc, hixienet.ListenBacklog); err != nil {
			s.logger.Debug("backlog not applied", zap.Error(err))
		}
	}
	return ln, nil
}

// acceptLoop polls the listener. A deadline expiry means no pending
// connection and is ignored; any other error is fatal for the server.
func (s *Server) acceptLoop(ctx context.Context, ln *net.TCPListener, wg *sync.WaitGroup, accepted chan struct{}) {
	defer wg.Done()
	defer close(accepted)

	for ctx.Err() == nil {
		if err := ln.SetDeadline(time.Now().Add(s.cfg.PollInterval)); err != nil {
			s.fail(ctx, ln, err)
			return
		}

		conn, err := ln.Accept()
		if err != nil {
			if isTransient(err) {
				continue
			}
			s.fail(ctx, ln, err)
			return
		}

		s.serve(ctx, conn, wg)
	}

	// the start context was cancelled; a no-op if Stop got here first
	go s.stop(context.Background(), ln)
}

func (s *Server) fail(ctx context.Context, ln *net.TCPListener, err error) {
	if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
		// Stop closed the listener
		return
	}

	s.logger.Error("listener failed", zap.Error(err))
	s.mu.Lock()
	if s.listener == ln {
		s.err = err
	}
	s.mu.Unlock()
	go s.stop(context.Background(), ln)
}

// serve assigns the next identifier to conn and runs it on its own goroutine.
func (s *Server) serve(ctx context.Context, conn net.Conn, wg *sync.WaitGroup) {
	id := s.nextID.Add(1) - 1

	s.mu.Lock()
	if !s.running || ctx.Err() != nil {
		s.mu.Unlock()
		conn.Close()
		return
	}
	client := NewClient(id, conn, s.cfg.Host, s.port, s.cfg)
	client.OnConnected(s.onConnected)
	client.OnDisconnected(s.onDisconnected)
	client.OnMessage(s.onMessage)
	s.sessions[id] = client
	wg.Add(1)
	s.mu.Unlock()

	client.logger.Debug("socket accepted")

	go func() {
		defer wg.Done()
		client.Run(ctx)

		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
	}()
}

func (s *Server) onConnected(c *Client) {
	s.mu.Lock()
	s.clients[c.ID()] = c
	count := len(s.clients)
	s.mu.Unlock()

	s.logger.Info("client registered", zap.Uint64("client_id", c.ID()), zap.Int("clients", count))

	if s.cfg.OnConnect != nil {
		s.cfg.OnConnect(c)
	}
	s.clientConnected.Fire(c.ID())
}

func (s *Server) onDisconnected(c *Client) {
	s.mu.Lock()
	delete(s.clients, c.ID())
	count := len(s.clients)
	s.mu.Unlock()

	s.logger.Info("client unregistered", zap.Uint64("client_id", c.ID()), zap.Int("clients", count))

	if s.cfg.OnClientDisconnect != nil {
		s.cfg.OnClientDisconnect(c, c.Voluntary())
	}
	s.clientDisconnected.Fire(c.ID())
}

func (s *Server) onMessage(m ClientMessage) {
	s.dataReceived.Fire(Message{ClientID: m.Client.ID(), Text: m.Text})
}

// Stop stops every client, closes the listener and waits for the connection
// goroutines to finish or ctx to expire. A goroutine that is running an event
// handler at that moment is not waited for, so Stop may be called from inside
// a handler; Done is closed once it has exited too.
func (s *Server) Stop(ctx context.Context) error {
	return s.stop(ctx, nil)
}

// stop shuts the server down if it is running. A non-nil ln restricts it to
// the run that owns that listener.
func (s *Server) stop(ctx context.Context, ln *net.TCPListener) error {
	s.mu.Lock()
	if !s.running || (ln != nil && s.listener != ln) {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel, ln, wg, done, accepted := s.cancel, s.listener, s.wg, s.done, s.accepted
	sessions := slices.Collect(maps.Values(s.sessions))
	s.mu.Unlock()

	s.logger.Info("shutting down", zap.Int("sessions", len(sessions)))

	for _, c := range sessions {
		c.Stop()
	}
	cancel()

	var err error
	if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		err = cerr
	}

	go func() {
		wg.Wait()
		s.logger.Info("shutdown complete")
		close(done)
	}()

	// a client busy in a handler may be the caller itself
	busy := false
	for _, c := range sessions {
		if c.InHandler() {
			busy = true
		}
	}
	if !busy {
		select {
		case <-done:
		case <-ctx.Done():
			err = errors.Join(err, ctx.Err())
		}
		return err
	}

	idle := make(chan struct{})
	go func() {
		defer close(idle)
		<-accepted
		for _, c := range sessions {
			if !c.InHandler() {
				<-c.Exited()
			}
		}
	}()

	select {
	case <-idle:
	case <-done:
	case <-ctx.Done():
		err = errors.Join(err, ctx.Err())
	}
	return err
}

// Done is closed once the server has stopped, whether by Stop, by the start
// context or by a listener failure.
func (s *Server) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

// Err returns the listener error that stopped the server, if any.
func (s *Server) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// IsRunning reports whether the server is accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// InstanceID identifies this server in log output.
func (s *Server) InstanceID() string {
	return s.instanceID
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port returns the advertised port.
func (s *Server) Port() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.port
}

// GetClient returns a registered client by ID
func (s *Server) GetClient(id uint64) (*Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	return c, ok
}

// Clients returns the identifiers of all registered clients in ascending order.
func (s *Server) Clients() []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.clients))
}

// SendTo sends a text frame to a specific client
func (s *Server) SendTo(ctx context.Context, id uint64, text string) error {
	client, ok := s.GetClient(id)
	if !ok {
		return fmt.Errorf("%w: %d", hixienet.ErrClientNotFound, id)
	}

	if err := client.Send(ctx, text); err != nil {
		if errors.Is(err, hixienet.ErrConnectionClosed) {
			return fmt.Errorf("%w: %d", hixienet.ErrClientNotFound, id)
		}
		return err
	}
	return nil
}

// SendAll sends a text frame to all registered clients
func (s *Server) SendAll(ctx context.Context, text string) error {
	s.mu.RLock()
	if !s.running {
		s.mu.RUnlock()
		return hixienet.ErrServerNotRunning
	}
	clients := slices.Collect(maps.Values(s.clients))
	s.mu.RUnlock()

	var errs []error
	for _, c := range clients {
		if err := c.Send(ctx, text); err != nil {
			errs = append(errs, fmt.Errorf("client %d: %w", c.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// OnClientConnected subscribes fn to completed handshakes
func (s *Server) OnClientConnected(fn func(id uint64)) (unsubscribe func()) {
	return s.clientConnected.Subscribe(fn)
}

// OnClientDisconnected subscribes fn to disconnects of registered clients
func (s *Server) OnClientDisconnected(fn func(id uint64)) (unsubscribe func()) {
	return s.clientDisconnected.Subscribe(fn)
}

// OnDataReceived subscribes fn to every message from every client
func (s *Server) OnDataReceived(fn func(id uint64, text string)) (unsubscribe func()) {
	return s.dataReceived.Subscribe(func(m Message) { fn(m.ClientID, m.Text) })
}

// OnMessage subscribes fn to every message, as a single value. Useful with
// hook.Buffered.
func (s *Server) OnMessage(fn func(Message)) (unsubscribe func()) {
	return s.dataReceived.Subscribe(fn)
}
