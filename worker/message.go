// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package worker

import "io"

// ConnectionID identifies a connection for its whole life. The reactor
// assigns them starting at 1 and never reuses one.
type ConnectionID uint64

// Readiness is a platform independent readiness notification.
type Readiness int

const (
	Other Readiness = iota
	Readable
	ErrorOrHangup
)

// String implements the [fmt.Stringer] interface.
func (r Readiness) String() string {
	switch r {
	case Readable:
		return "readable"
	case ErrorOrHangup:
		return "error_or_hangup"
	default:
		return "other"
	}
}

// Socket is the connection transport owned by a worker. Read must
// return [socket.ErrWouldBlock] once no more data is available.
type Socket interface {
	io.Reader
	io.Writer

	Shutdown() error
	Close() error
}

// Message is sent from the reactor to the worker owning a connection.
type Message interface {
	ConnectionID() ConnectionID
}

// NewConnection hands ownership of a freshly accepted socket to a worker.
type NewConnection struct {
	ID     ConnectionID
	Socket Socket
}

// ConnectionID implements the [Message] interface.
func (m NewConnection) ConnectionID() ConnectionID {
	return m.ID
}

// ConnectionEvent reports readiness of an already known connection.
type ConnectionEvent struct {
	ID        ConnectionID
	Readiness Readiness
}

// ConnectionID implements the [Message] interface.
func (m ConnectionEvent) ConnectionID() ConnectionID {
	return m.ID
}
