// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package socket wraps raw non-blocking TCP sockets so that readiness
// can be driven by an external poller instead of the Go netpoller.
package socket

import (
	"errors"
	"fmt"
)

var (
	// ErrWouldBlock is returned when an operation can not make progress
	// without blocking.
	ErrWouldBlock = errors.New("socket: operation would block")

	// ErrWriteTimeout is returned when a socket did not become writable
	// before its write timeout.
	ErrWriteTimeout = errors.New("socket: write timed out")

	// ErrUnsupported is returned on platforms without raw socket support.
	ErrUnsupported = errors.New("socket: unsupported platform")
)

// AddrError occurs when an address can not be resolved into something
// which can be bound.
type AddrError struct {
	Addr  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e AddrError) Error() string {
	return fmt.Sprintf("socket: invalid address %q: %s", e.Addr, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e AddrError) Unwrap() error {
	return e.Cause
}
