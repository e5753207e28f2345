package websocket

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/luciancaetano/hixienet/internal/protocol"
)

const (
	testDigest  = "8jKS'y:G*Co,Wxa-"
	testTimeout = 3 * time.Second
)

func upgradeRequest(headers ...string) string {
	lines := append([]string{"GET /demo HTTP/1.1"}, headers...)
	return strings.Join(lines, "\r\n") + "\r\n\r\n^n:ds[4U"
}

func validRequest() string {
	return upgradeRequest(
		"Host: example.com",
		"Connection: Upgrade",
		"Sec-WebSocket-Key2: 12998 5 Y3 1  .P00",
		"Upgrade: WebSocket",
		"Sec-WebSocket-Key1: 4 @1  46546xW%0l 1 5",
		"Origin: http://example.com",
	)
}

func noUpgradeRequest() string {
	return upgradeRequest(
		"Host: example.com",
		"Sec-WebSocket-Key2: 12998 5 Y3 1  .P00",
		"Sec-WebSocket-Key1: 4 @1  46546xW%0l 1 5",
		"Origin: http://example.com",
	)
}

func testConfig(t *testing.T) *ServerConfig {
	return &ServerConfig{
		Host:            "127.0.0.1",
		RateLimitConfig: NoRateLimit(),
		Logger:          zaptest.NewLogger(t),
		PollInterval:    5 * time.Millisecond,
	}
}

// tcpPair returns both ends of a loopback TCP connection.
func tcpPair(t *testing.T) (server, client net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	server, ok := <-accepted
	if !ok {
		t.Fatal("accept failed")
	}

	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return server, client
}

// peer is the test side of a draft-76 connection.
type peer struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func newPeer(t *testing.T, conn net.Conn) *peer {
	return &peer{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func dialServer(t *testing.T, s *Server) *peer {
	t.Helper()

	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return newPeer(t, conn)
}

func (p *peer) write(s string) {
	p.t.Helper()
	if _, err := p.conn.Write([]byte(s)); err != nil {
		p.t.Fatalf("write: %v", err)
	}
}

// readResponse reads the header block and the 16-byte digest.
func (p *peer) readResponse() (headers string, digest string) {
	p.t.Helper()

	p.conn.SetReadDeadline(time.Now().Add(testTimeout))
	var head bytes.Buffer
	for !bytes.HasSuffix(head.Bytes(), []byte("\r\n\r\n")) {
		b, err := p.r.ReadByte()
		if err != nil {
			p.t.Fatalf("read response headers: %v (got %q)", err, head.String())
		}
		head.WriteByte(b)
	}

	sum := make([]byte, 16)
	if _, err := io.ReadFull(p.r, sum); err != nil {
		p.t.Fatalf("read response digest: %v", err)
	}
	return head.String(), string(sum)
}

// upgrade performs a valid handshake and checks the digest.
func (p *peer) upgrade() string {
	p.t.Helper()

	p.write(validRequest())
	headers, digest := p.readResponse()
	if digest != testDigest {
		p.t.Fatalf("digest = %q, want %q", digest, testDigest)
	}
	if !strings.HasPrefix(headers, "HTTP/1.1 101 WebSocket Protocol Handshake\r\n") {
		p.t.Fatalf("unexpected status line in %q", headers)
	}
	return headers
}

func (p *peer) send(texts ...string) {
	p.t.Helper()

	var wire []byte
	for _, text := range texts {
		wire = protocol.AppendEncode(wire, text)
	}
	if _, err := p.conn.Write(wire); err != nil {
		p.t.Fatalf("send: %v", err)
	}
}

func (p *peer) readFrame() string {
	p.t.Helper()

	p.conn.SetReadDeadline(time.Now().Add(testTimeout))
	start, err := p.r.ReadByte()
	if err != nil {
		p.t.Fatalf("read frame start: %v", err)
	}
	if start != protocol.FrameStart {
		p.t.Fatalf("frame start = %#x, want 0x00", start)
	}
	body, err := p.r.ReadBytes(protocol.FrameEnd)
	if err != nil {
		p.t.Fatalf("read frame body: %v", err)
	}
	return string(body[:len(body)-1])
}

// expectClosed asserts the remote side closed the socket without sending
// anything.
func (p *peer) expectClosed() {
	p.t.Helper()

	p.conn.SetReadDeadline(time.Now().Add(testTimeout))
	n, err := p.r.Read(make([]byte, 64))
	if n != 0 {
		p.t.Fatalf("read %d bytes, want none", n)
	}
	if err == nil || isTransient(err) {
		p.t.Fatalf("read error = %v, want connection closed", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(testTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func receive[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %s", what)
		var zero T
		return zero
	}
}

func expectNone[T any](t *testing.T, ch <-chan T, what string) {
	t.Helper()

	select {
	case v := <-ch:
		t.Fatalf("unexpected %s: %v", what, v)
	case <-time.After(50 * time.Millisecond):
	}
}

func startServer(t *testing.T, cfg *ServerConfig) *Server {
	t.Helper()

	s := New(cfg)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		s.Stop(ctx)
		select {
		case <-s.Done():
		case <-ctx.Done():
		}
	})
	return s
}
