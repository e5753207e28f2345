//go:build linux

package websocket

import "golang.org/x/sys/unix"

var wouldBlockErrnos = []error{unix.EAGAIN, unix.EWOULDBLOCK, unix.ENODATA}
