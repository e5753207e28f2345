package websocket

import (
	"errors"
	"net"
	"os"
)

// isTransient reports whether err only means "nothing to read or accept right
// now". Deadline expiries and the platform would-block codes all collapse into
// this one signal; it is never surfaced to callers.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	for _, errno := range wouldBlockErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
