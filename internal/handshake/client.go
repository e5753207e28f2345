package handshake

import (
	"bytes"
	"crypto/rand"
	"math"
	mrand "math/rand/v2"
	"strconv"

	"github.com/luciancaetano/hixienet"
)

const maxKeySpaces = 12

// keyNoise are the non-digit characters mixed into generated keys. Colons are
// excluded since header lines are split on ": ".
const keyNoise = "!\"#$%&'()*+,-./;<=>?@ABCDEFGHIJKLMNOPQRSTUVWXYZ[\\]^_`abcdefghijklmnopqrstuvwxyz{|}~"

// GenerateKey returns a random challenge header value and the key it decodes
// to. The value never starts or ends with a space.
func GenerateKey() (value string, key uint32) {
	spaces := 1 + mrand.IntN(maxKeySpaces)
	key = mrand.Uint32N(math.MaxUint32 / uint32(spaces))
	product := uint64(key) * uint64(spaces)

	chars := []byte(strconv.FormatUint(product, 10))
	for range 1 + mrand.IntN(maxKeySpaces) {
		pos := mrand.IntN(len(chars) + 1)
		chars = insertByte(chars, pos, keyNoise[mrand.IntN(len(keyNoise))])
	}
	for range spaces {
		pos := 1 + mrand.IntN(len(chars)-1)
		chars = insertByte(chars, pos, ' ')
	}
	return string(chars), key
}

func insertByte(b []byte, pos int, c byte) []byte {
	b = append(b, 0)
	copy(b[pos+1:], b[pos:])
	b[pos] = c
	return b
}

// ClientRequest is an upgrade request prepared by a client together with the
// digest a conforming server must answer with.
type ClientRequest struct {
	Raw    []byte
	Expect [16]byte
}

// NewClientRequest builds an upgrade request for resource on host with fresh
// keys and entropy.
func NewClientRequest(host, resource, origin string) (*ClientRequest, error) {
	v1, k1 := GenerateKey()
	v2, k2 := GenerateKey()

	var entropy [EntropySize]byte
	if _, err := rand.Read(entropy[:]); err != nil {
		return nil, err
	}

	var b bytes.Buffer
	b.WriteString("GET " + resource + " HTTP/1.1\r\n")
	b.WriteString(HeaderUpgrade + ": " + hixienet.UpgradeToken + "\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	b.WriteString("Host: " + host + "\r\n")
	b.WriteString(HeaderOrigin + ": " + origin + "\r\n")
	b.WriteString(HeaderKey1 + ": " + v1 + "\r\n")
	b.WriteString(HeaderKey2 + ": " + v2 + "\r\n")
	b.WriteString("\r\n")
	b.Write(entropy[:])

	return &ClientRequest{
		Raw:    b.Bytes(),
		Expect: Challenge(k1, k2, entropy),
	}, nil
}
