// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

//go:build unix

package discovery

import (
	"net"
	"syscall"
)

// enableBroadcast sets SO_BROADCAST so announcements may target a broadcast
// address. Failure only matters for broadcast destinations, so it is ignored.
func enableBroadcast(conn net.PacketConn) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) {
		_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	})
}
