// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

//go:build !unix

package discovery

import "net"

func enableBroadcast(net.PacketConn) {}
