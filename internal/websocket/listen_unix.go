//go:build unix

package websocket

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func reuseAddr(_, _ string, rc syscall.RawConn) error {
	var serr error
	err := rc.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return serr
}

// setBacklog re-issues listen(2) on an already listening socket, which
// resizes its pending connection queue.
func setBacklog(rc syscall.RawConn, backlog int) error {
	var serr error
	err := rc.Control(func(fd uintptr) {
		serr = unix.Listen(int(fd), backlog)
	})
	if err != nil {
		return err
	}
	return serr
}
