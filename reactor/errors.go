// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package reactor

import (
	"errors"
	"fmt"
)

// ErrNotListening is returned by [Reactor.Serve] if [Reactor.Listen]
// was never called or did not succeed.
var ErrNotListening = errors.New("reactor: not listening")

// BindError occurs when the listening socket could not be created.
type BindError struct {
	Addr  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e BindError) Error() string {
	return fmt.Sprintf("reactor: failed to bind %s: %s", e.Addr, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e BindError) Unwrap() error {
	return e.Cause
}

// PollerError occurs when the readiness poller could not be created
// or polling it failed.
type PollerError struct {
	Op    string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e PollerError) Error() string {
	return fmt.Sprintf("reactor: poller %s failed: %s", e.Op, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e PollerError) Unwrap() error {
	return e.Cause
}

// AcceptError occurs when accepting a connection fails for a reason
// other than the listener being drained.
type AcceptError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e AcceptError) Error() string {
	return fmt.Sprintf("reactor: failed to accept connection: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e AcceptError) Unwrap() error {
	return e.Cause
}
