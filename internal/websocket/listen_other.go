//go:build !unix && !windows

package websocket

import "syscall"

func reuseAddr(string, string, syscall.RawConn) error {
	return nil
}

func setBacklog(syscall.RawConn, int) error {
	return nil
}
