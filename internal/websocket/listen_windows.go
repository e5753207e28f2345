//go:build windows

package websocket

import (
	"syscall"

	"golang.org/x/sys/windows"
)

func reuseAddr(_, _ string, rc syscall.RawConn) error {
	var serr error
	err := rc.Control(func(fd uintptr) {
		serr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return serr
}

// Winsock ignores listen on a socket that is already listening.
func setBacklog(syscall.RawConn, int) error {
	return nil
}
