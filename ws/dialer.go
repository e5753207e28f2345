package ws

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/luciancaetano/hixienet"
	"github.com/luciancaetano/hixienet/internal/handshake"
	"github.com/luciancaetano/hixienet/internal/protocol"
)

// Errors returned by Dial.
var (
	ErrBadURL       = errors.New("ws: unsupported url")
	ErrBadHandshake = errors.New("ws: bad handshake")
	ErrBadFrame     = errors.New("ws: bad frame")
)

const defaultDialTimeout = 5 * time.Second

// Dialer opens draft-76 client connections. It exists mainly to exercise
// servers in tests and examples.
type Dialer struct {
	// HandshakeTimeout bounds connect plus handshake. Zero means 5s.
	HandshakeTimeout time.Duration
	// Origin is sent in the Origin header. Empty means http://<host>.
	Origin string
}

// Conn is the client side of an upgraded connection.
type Conn struct {
	conn    net.Conn
	r       *bufio.Reader
	writeMu sync.Mutex
	header  textproto.MIMEHeader
}

// Dial connects to a ws:// URL and performs the upgrade handshake.
func (d *Dialer) Dial(ctx context.Context, rawURL string) (*Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadURL, err)
	}
	if u.Scheme != "ws" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBadURL, rawURL)
	}

	addr := u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), "80")
	}

	origin := d.Origin
	if origin == "" {
		origin = "http://" + u.Hostname()
	}

	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var nd net.Dialer
	nc, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	deadline, _ := ctx.Deadline()
	if err := nc.SetDeadline(deadline); err != nil {
		nc.Close()
		return nil, err
	}

	c, err := upgrade(nc, u.Host, u.RequestURI(), origin)
	if err != nil {
		nc.Close()
		return nil, err
	}

	if err := nc.SetDeadline(time.Time{}); err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

func upgrade(nc net.Conn, host, resource, origin string) (*Conn, error) {
	cr, err := handshake.NewClientRequest(host, resource, origin)
	if err != nil {
		return nil, err
	}
	if _, err := nc.Write(cr.Raw); err != nil {
		return nil, err
	}

	r := bufio.NewReader(nc)
	tp := textproto.NewReader(r)

	status, err := tp.ReadLine()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHandshake, err)
	}
	if !strings.HasPrefix(status, "HTTP/1.1 101 ") {
		return nil, fmt.Errorf("%w: status %q", ErrBadHandshake, status)
	}

	header, err := tp.ReadMIMEHeader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHandshake, err)
	}
	if header.Get(handshake.HeaderUpgrade) != hixienet.UpgradeToken {
		return nil, fmt.Errorf("%w: upgrade %q", ErrBadHandshake, header.Get(handshake.HeaderUpgrade))
	}

	var digest [16]byte
	if _, err := io.ReadFull(r, digest[:]); err != nil {
		return nil, fmt.Errorf("%w: digest: %v", ErrBadHandshake, err)
	}
	if !bytes.Equal(digest[:], cr.Expect[:]) {
		return nil, fmt.Errorf("%w: digest mismatch", ErrBadHandshake)
	}

	return &Conn{conn: nc, r: r, header: header}, nil
}

// Location returns the Sec-WebSocket-Location the server advertised.
func (c *Conn) Location() string {
	return c.header.Get("Sec-WebSocket-Location")
}

// WriteText sends one text frame.
func (c *Conn) WriteText(text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(protocol.Encode(text))
	return err
}

// ReadText blocks until one complete text frame has arrived.
func (c *Conn) ReadText() (string, error) {
	start, err := c.r.ReadByte()
	if err != nil {
		return "", err
	}
	if start != protocol.FrameStart {
		return "", fmt.Errorf("%w: start byte %#x", ErrBadFrame, start)
	}
	body, err := c.r.ReadBytes(protocol.FrameEnd)
	if err != nil {
		return "", err
	}
	return string(body[:len(body)-1]), nil
}

// SetReadDeadline sets the deadline for future ReadText calls.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *Conn) Close() error {
	return c.conn.Close()
}
