//go:build windows

package websocket

import "golang.org/x/sys/windows"

var wouldBlockErrnos = []error{windows.WSAEWOULDBLOCK}
