package protocol

import (
	"bytes"
	"iter"
	"strings"
)

const (
	// FrameStart opens every text frame.
	FrameStart byte = 0x00
	// FrameEnd closes every text frame.
	FrameEnd byte = 0xFF
)

// Encode wraps the UTF-8 bytes of text between FrameStart and FrameEnd.
// There is no escaping: text must not contain either sentinel byte for the
// frame to be unambiguous.
func Encode(text string) []byte {
	return AppendEncode(make([]byte, 0, len(text)+2), text)
}

// AppendEncode appends the frame for text to dst and returns the extended slice.
func AppendEncode(dst []byte, text string) []byte {
	dst = append(dst, FrameStart)
	dst = append(dst, text...)
	return append(dst, FrameEnd)
}

// Decode splits buf into text messages.
//
// A frame begins at FrameStart and ends at the next FrameStart or at the end
// of buf. A single leading empty segment is discarded. Invalid UTF-8,
// including the FrameEnd byte itself, is dropped from every segment, so a
// missing or repeated FrameEnd is tolerated. An empty buf yields nothing.
//
// The returned sequence is lazy and reads buf as it goes; buf must not be
// modified until iteration is done.
func Decode(buf []byte) iter.Seq[string] {
	return func(yield func(string) bool) {
		if len(buf) == 0 {
			return
		}

		rest := buf
		if rest[0] == FrameStart {
			rest = rest[1:]
		}

		for {
			segment, tail, found := bytes.Cut(rest, []byte{FrameStart})
			if !yield(strings.ToValidUTF8(string(segment), "")) {
				return
			}
			if !found {
				return
			}
			rest = tail
		}
	}
}

// DecodeAll collects every message of Decode(buf).
func DecodeAll(buf []byte) []string {
	var out []string
	for msg := range Decode(buf) {
		out = append(out, msg)
	}
	return out
}
