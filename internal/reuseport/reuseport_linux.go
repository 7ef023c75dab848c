//go:build linux

// Package reuseport binds a UDP socket with SO_REUSEPORT set, letting
// multiple server processes share one port so an operator can run one
// roughtimed per CPU core behind the kernel's own load balancing instead
// of a single-threaded listener fanning work out itself.
package reuseport

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// ListenUDP binds addr with SO_REUSEPORT enabled.
func ListenUDP(network, addr string) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	conn, err := lc.ListenPacket(context.Background(), network, addr)
	if err != nil {
		return nil, err
	}
	return conn.(*net.UDPConn), nil
}
