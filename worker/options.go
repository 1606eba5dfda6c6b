// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package worker

import (
	"log/slog"
	"time"

	"github.com/z5labs/evhttp/http1"
	"github.com/z5labs/evhttp/pkg/otelslog"
)

const (
	DefaultIdleTimeout    = 120 * time.Second
	DefaultSweepInterval  = time.Second
	DefaultReadBufferSize = 16 << 10
	DefaultWriteTimeout   = 10 * time.Second
)

type options struct {
	logHandler     slog.Handler
	idleTimeout    time.Duration
	sweepInterval  time.Duration
	readBufferSize int
	writeTimeout   time.Duration
	parserOpts     []http1.ParserOption
}

// Option configures a [Pool].
type Option func(*options)

// LogHandler sets the handler workers log to. Records are correlated
// with the active trace.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = otelslog.NewHandler(h)
	}
}

// IdleTimeout evicts connections which have not received any bytes for
// longer than d. Zero disables eviction.
func IdleTimeout(d time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = d
	}
}

// SweepInterval sets how often workers look for idle connections.
func SweepInterval(d time.Duration) Option {
	return func(o *options) {
		if d <= 0 {
			return
		}
		o.sweepInterval = d
	}
}

// ReadBufferSize sets the size of the buffer each worker reads into.
func ReadBufferSize(n int) Option {
	return func(o *options) {
		if n <= 0 {
			return
		}
		o.readBufferSize = n
	}
}

// WriteTimeout bounds how long a response write may wait for a slow
// client. It only applies to sockets with a SetWriteTimeout method.
func WriteTimeout(d time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = d
	}
}

// ParserOptions are applied to the parser of every new connection.
func ParserOptions(opts ...http1.ParserOption) Option {
	return func(o *options) {
		o.parserOpts = append(o.parserOpts, opts...)
	}
}
