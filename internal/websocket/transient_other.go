//go:build !unix && !windows

package websocket

var wouldBlockErrnos []error
