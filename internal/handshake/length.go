package handshake

import "bytes"

// Length returns the number of bytes the upgrade request occupies at the
// start of buf, header block and entropy included, or -1 while incomplete.
// Bytes past Length belong to the first frames.
func Length(buf []byte) int {
	i := bytes.Index(buf, terminator)
	if i < 0 || len(buf) < i+len(terminator)+EntropySize {
		return -1
	}
	return i + len(terminator) + EntropySize
}
