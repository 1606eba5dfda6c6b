// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package worker

import (
	"time"

	"github.com/z5labs/evhttp/http1"
)

// Connection pairs a socket with the parser and response writer serving
// it. It's only ever touched by the worker which owns it.
type Connection struct {
	id     ConnectionID
	sock   Socket
	parser *http1.Parser
	w      *http1.ResponseWriter

	lastActive time.Time
}

type writeTimeouter interface {
	SetWriteTimeout(time.Duration)
}

func newConnection(id ConnectionID, sock Socket, now time.Time, o *options) *Connection {
	if wt, ok := sock.(writeTimeouter); ok {
		wt.SetWriteTimeout(o.writeTimeout)
	}
	return &Connection{
		id:         id,
		sock:       sock,
		parser:     http1.NewParser(o.parserOpts...),
		w:          http1.NewResponseWriter(sock),
		lastActive: now,
	}
}

// ID returns the connection identity.
func (c *Connection) ID() ConnectionID {
	return c.id
}
