// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package session

import (
	"net"
)

// advertiseHost picks the host part of the URL peers should dial.
// An explicit host wins; otherwise a bound specific IP is used, then the
// address of the interface carrying the default route, then loopback.
func advertiseHost(explicit string, bound net.Addr) string {
	if explicit != "" {
		return explicit
	}
	if tcp, ok := bound.(*net.TCPAddr); ok && tcp.IP != nil && !tcp.IP.IsUnspecified() {
		return tcp.IP.String()
	}
	if ip := outboundIP(); ip != nil {
		return ip.String()
	}
	return "127.0.0.1"
}

// outboundIP finds the local address used for outbound traffic. UDP dial
// sends nothing; it only selects a route.
func outboundIP() net.IP {
	conn, err := net.Dial("udp4", "192.0.2.1:9")
	if err != nil {
		return nil
	}
	defer conn.Close()
	if udp, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return udp.IP
	}
	return nil
}
