package handshake

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/luciancaetano/hixienet"
)

// Header names read from the upgrade request.
const (
	HeaderUpgrade = "Upgrade"
	HeaderKey1    = "Sec-WebSocket-Key1"
	HeaderKey2    = "Sec-WebSocket-Key2"
	HeaderOrigin  = "Origin"

	// EntropySize is the number of raw bytes following the header block.
	EntropySize = 8
)

var terminator = []byte("\r\n\r\n")

// Errors for handshake validation.
var (
	ErrIncomplete       = errors.New("incomplete handshake")
	ErrMalformedRequest = errors.New("malformed request line")
	ErrNotUpgrade       = errors.New("missing or invalid Upgrade header")
	ErrMissingHeader    = errors.New("missing required header")
	ErrMalformedKey     = errors.New("malformed challenge key")
)

// Request holds the fields extracted from a client upgrade request.
type Request struct {
	// Resource is the path from the request line.
	Resource string
	// Header maps header names, as sent, to their values.
	Header map[string]string
	// Entropy is the 8 bytes following the blank line.
	Entropy [EntropySize]byte
}

// Get returns the value of the named header. Names match case-insensitively,
// as in HTTP; an exact match wins when a request repeats a name in two
// spellings. Values are never folded.
func (r *Request) Get(name string) (string, bool) {
	if v, ok := r.Header[name]; ok {
		return v, true
	}
	for k, v := range r.Header {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// Origin returns the Origin header.
func (r *Request) Origin() string {
	v, _ := r.Get(HeaderOrigin)
	return v
}

// Complete reports whether buf holds the whole header block and the entropy
// bytes that follow it.
func Complete(buf []byte) bool {
	return Length(buf) >= 0
}

// Parse extracts the upgrade request from raw and validates the headers the
// challenge response depends on.
func Parse(raw []byte) (*Request, error) {
	end := bytes.Index(raw, terminator)
	if end < 0 {
		return nil, fmt.Errorf("%w: no header terminator", ErrIncomplete)
	}
	entropy := raw[end+len(terminator):]
	if len(entropy) < EntropySize {
		return nil, fmt.Errorf("%w: %d of %d entropy bytes", ErrIncomplete, len(entropy), EntropySize)
	}

	lines := strings.Split(string(raw[:end]), "\r\n")

	requestLine := strings.Split(lines[0], " ")
	if len(requestLine) < 2 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedRequest, lines[0])
	}

	req := &Request{
		Resource: requestLine[1],
		Header:   make(map[string]string, len(lines)-1),
	}
	copy(req.Entropy[:], entropy)

	for _, line := range lines[1:] {
		parts := strings.Split(line, ": ")
		if len(parts) != 2 {
			continue
		}
		req.Header[parts[0]] = parts[1]
	}

	if v, ok := req.Get(HeaderUpgrade); !ok || v != hixienet.UpgradeToken {
		return nil, ErrNotUpgrade
	}

	for _, name := range []string{HeaderKey1, HeaderKey2, HeaderOrigin} {
		if _, ok := req.Get(name); !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingHeader, name)
		}
	}

	return req, nil
}

// DecodeKey turns a challenge header value into its numeric key: the decimal
// digits read as one integer, divided by the number of whitespace characters.
func DecodeKey(value string) (uint32, error) {
	var digits strings.Builder
	spaces := uint64(0)

	for _, c := range value {
		switch {
		case c >= '0' && c <= '9':
			digits.WriteRune(c)
		case unicode.IsSpace(c):
			spaces++
		}
	}

	if spaces == 0 {
		return 0, fmt.Errorf("%w: no whitespace in %q", ErrMalformedKey, value)
	}

	n, err := strconv.ParseUint(digits.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}

	key := n / spaces
	if key > math.MaxUint32 {
		return 0, fmt.Errorf("%w: key %d overflows 32 bits", ErrMalformedKey, key)
	}
	return uint32(key), nil
}

// Challenge computes the 16-byte response digest: MD5 over both keys as
// big-endian uint32 followed by the entropy bytes.
func Challenge(key1, key2 uint32, entropy [EntropySize]byte) [md5.Size]byte {
	var buf [4 + 4 + EntropySize]byte
	binary.BigEndian.PutUint32(buf[0:4], key1)
	binary.BigEndian.PutUint32(buf[4:8], key2)
	copy(buf[8:], entropy[:])
	return md5.Sum(buf[:])
}

// Digest decodes both challenge keys of r and returns the response digest.
func (r *Request) Digest() ([md5.Size]byte, error) {
	v1, _ := r.Get(HeaderKey1)
	v2, _ := r.Get(HeaderKey2)

	key1, err := DecodeKey(v1)
	if err != nil {
		return [md5.Size]byte{}, fmt.Errorf("%s: %w", HeaderKey1, err)
	}
	key2, err := DecodeKey(v2)
	if err != nil {
		return [md5.Size]byte{}, fmt.Errorf("%s: %w", HeaderKey2, err)
	}

	return Challenge(key1, key2, r.Entropy), nil
}

// Response builds the full server handshake for r, advertising the given
// host and port in Sec-WebSocket-Location.
func (r *Request) Response(host string, port int) ([]byte, error) {
	digest, err := r.Digest()
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	b.WriteString("HTTP/1.1 101 WebSocket Protocol Handshake\r\n")
	b.WriteString("Upgrade: " + hixienet.UpgradeToken + "\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	b.WriteString("Sec-WebSocket-Origin: " + r.Origin() + "\r\n")
	b.WriteString("Sec-WebSocket-Location: ws://" + host + ":" + strconv.Itoa(port) + r.Resource + "\r\n")
	b.WriteString("\r\n")
	b.Write(digest[:])
	return b.Bytes(), nil
}
