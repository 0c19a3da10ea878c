// Socket tuning: TCP_NODELAY on every Conn's underlying socket (the
// control protocol is small, latency-sensitive frames — Nagle's algorithm
// only adds delay here) and SO_REUSEADDR on the aggregator's listener
// (so a restarted aggd can rebind its listen address immediately instead
// of waiting out TIME_WAIT), both via golang.org/x/sys/unix since the
// stdlib doesn't expose setsockopt directly. The rest of this codebase
// already assumes a Linux host (lufia/iostat, /proc/loadavg), so this
// carries no build tag.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/NVIDIA/xltop/internal/xlog"
)

// TuneConn sets TCP_NODELAY on nc if it's a *net.TCPConn, logging but
// not failing the caller on a platform or socket type that refuses it.
func TuneConn(nc net.Conn) {
	tc, ok := nc.(*net.TCPConn)
	if !ok {
		return
	}
	raw, err := tc.SyscallConn()
	if err != nil {
		return
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	}); err != nil {
		return
	}
	if sockErr != nil {
		xlog.Warnf("transport: TCP_NODELAY: %v", sockErr)
	}
}

// ListenConfig returns a net.ListenConfig that sets SO_REUSEADDR on the
// listening socket before bind, the Go equivalent of the original's
// listener setup flags.
func ListenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			if err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			}); err != nil {
				return err
			}
			if sockErr != nil {
				xlog.Warnf("transport: SO_REUSEADDR: %v", sockErr)
			}
			return nil
		},
	}
}
