// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

//go:build !linux

package socket

import (
	"net"
	"time"
)

// Listener is a non-blocking listening TCP socket.
type Listener struct{}

// Listen always fails with [ErrUnsupported].
func Listen(addr string, backlog int) (*Listener, error) {
	return nil, ErrUnsupported
}

// Fd returns the underlying file descriptor.
func (l *Listener) Fd() int { return -1 }

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return nil }

// Accept always fails with [ErrUnsupported].
func (l *Listener) Accept() (*Socket, error) { return nil, ErrUnsupported }

// Close implements the [io.Closer] interface.
func (l *Listener) Close() error { return nil }

// Socket is a non-blocking connected stream socket.
type Socket struct{}

// Pair always fails with [ErrUnsupported].
func Pair() (*Socket, *Socket, error) {
	return nil, nil, ErrUnsupported
}

// Fd returns the underlying file descriptor.
func (s *Socket) Fd() int { return -1 }

// RemoteAddr returns the peer address, if known.
func (s *Socket) RemoteAddr() net.Addr { return nil }

// SetWriteTimeout bounds how long a single Write may wait.
func (s *Socket) SetWriteTimeout(d time.Duration) {}

// Read always fails with [ErrUnsupported].
func (s *Socket) Read(b []byte) (int, error) { return 0, ErrUnsupported }

// Write always fails with [ErrUnsupported].
func (s *Socket) Write(b []byte) (int, error) { return 0, ErrUnsupported }

// Shutdown always fails with [ErrUnsupported].
func (s *Socket) Shutdown() error { return ErrUnsupported }

// Close implements the [io.Closer] interface.
func (s *Socket) Close() error { return nil }
