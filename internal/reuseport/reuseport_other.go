//go:build !linux

package reuseport

import "net"

// ListenUDP falls back to a plain bind on platforms without
// SO_REUSEPORT support (anything but Linux, for our purposes).
func ListenUDP(network, addr string) (*net.UDPConn, error) {
	a, err := net.ResolveUDPAddr(network, addr)
	if err != nil {
		return nil, err
	}
	return net.ListenUDP(network, a)
}
