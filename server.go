// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package evhttp

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/z5labs/evhttp/config"
	"github.com/z5labs/evhttp/http1"
	"github.com/z5labs/evhttp/internal/fixedpool"
	"github.com/z5labs/evhttp/pkg/otelslog"
	"github.com/z5labs/evhttp/pkg/slogfield"
	"github.com/z5labs/evhttp/reactor"
	"github.com/z5labs/evhttp/router"
	"github.com/z5labs/evhttp/worker"
)

// Defaults applied when a [ServerOption] is not given or its
// [config.Reader] has no value.
const (
	DefaultAddr    = "127.0.0.1:8080"
	DefaultWorkers = 4
)

type serverOptions struct {
	addr           config.Reader[string]
	workers        config.Reader[int]
	idleTimeout    config.Reader[time.Duration]
	writeTimeout   config.Reader[time.Duration]
	maxBufferBytes config.Reader[int]
	strictCRLF     config.Reader[bool]
	logHandler     slog.Handler
}

// ServerOption configures a [Server].
type ServerOption func(*serverOptions)

// Addr sets the address to listen on.
func Addr(r config.Reader[string]) ServerOption {
	return func(so *serverOptions) {
		so.addr = r
	}
}

// Workers sets the number of workers.
func Workers(r config.Reader[int]) ServerOption {
	return func(so *serverOptions) {
		so.workers = r
	}
}

// IdleTimeout sets how long a connection may be idle before it's
// closed. Zero disables eviction.
func IdleTimeout(r config.Reader[time.Duration]) ServerOption {
	return func(so *serverOptions) {
		so.idleTimeout = r
	}
}

// WriteTimeout bounds how long writing a response may block.
func WriteTimeout(r config.Reader[time.Duration]) ServerOption {
	return func(so *serverOptions) {
		so.writeTimeout = r
	}
}

// MaxBufferBytes caps how many unparsed bytes a connection may buffer.
func MaxBufferBytes(r config.Reader[int]) ServerOption {
	return func(so *serverOptions) {
		so.maxBufferBytes = r
	}
}

// StrictCRLF rejects lines terminated by a bare LF.
func StrictCRLF(r config.Reader[bool]) ServerOption {
	return func(so *serverOptions) {
		so.strictCRLF = r
	}
}

// LogHandler configures the underlying [slog.Handler].
func LogHandler(h slog.Handler) ServerOption {
	return func(so *serverOptions) {
		so.logHandler = h
	}
}

// Server couples a [reactor.Reactor] with a [worker.Pool].
type Server struct {
	opts     serverOptions
	log      *slog.Logger
	registry *router.Registry

	mu         sync.Mutex
	reactor    *reactor.Reactor
	listening  chan struct{}
	listenOnce sync.Once
}

// NewServer initializes a [Server]. Nothing is bound until Run.
func NewServer(opts ...ServerOption) *Server {
	so := serverOptions{
		logHandler: otelslog.Discard{},
	}
	for _, opt := range opts {
		opt(&so)
	}

	return &Server{
		opts:      so,
		log:       otelslog.New(so.logHandler),
		registry:  router.NewRegistry(),
		listening: make(chan struct{}),
	}
}

// Handle registers h for paths fully matching pattern. Patterns are
// tried in registration order. Handlers must be registered before Run.
func (s *Server) Handle(pattern string, h router.Handler) error {
	return s.registry.Handle(pattern, h)
}

// Listening is closed once Run has bound its address or has failed
// before binding. Check Addr to tell the two apart.
func (s *Server) Listening() <-chan struct{} {
	return s.listening
}

// Addr returns the bound address or nil if the server is not listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reactor == nil {
		return nil
	}
	return s.reactor.Addr()
}

// Healthy implements the [health.Metric] interface. A server is healthy
// while it accepts connections.
func (s *Server) Healthy(ctx context.Context) bool {
	s.mu.Lock()
	r := s.reactor
	s.mu.Unlock()
	return r != nil && r.Healthy(ctx)
}

// Run binds the address and serves until ctx is cancelled. A failure to
// bind or poll is returned, everything else is handled per connection.
// A Server can only be run once.
func (s *Server) Run(ctx context.Context) error {
	defer s.signalListening()

	addr, err := readOr(ctx, DefaultAddr, s.opts.addr)
	if err != nil {
		return err
	}
	n, err := readOr(ctx, DefaultWorkers, s.opts.workers)
	if err != nil {
		return err
	}
	idle, err := readOr(ctx, worker.DefaultIdleTimeout, s.opts.idleTimeout)
	if err != nil {
		return err
	}
	writeTimeout, err := readOr(ctx, worker.DefaultWriteTimeout, s.opts.writeTimeout)
	if err != nil {
		return err
	}
	maxBuf, err := readOr(ctx, http1.DefaultMaxBufferBytes, s.opts.maxBufferBytes)
	if err != nil {
		return err
	}
	strict, err := readOr(ctx, false, s.opts.strictCRLF)
	if err != nil {
		return err
	}

	pool := worker.NewPool(
		n,
		s.registry,
		worker.LogHandler(s.opts.logHandler),
		worker.IdleTimeout(idle),
		worker.WriteTimeout(writeTimeout),
		worker.ParserOptions(
			http1.MaxBufferBytes(maxBuf),
			http1.StrictCRLF(strict),
		),
	)

	r := reactor.New(addr, pool, reactor.LogHandler(s.opts.logHandler))
	err = r.Listen()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.reactor = r
	s.mu.Unlock()
	s.signalListening()

	s.log.InfoContext(
		ctx,
		"serving",
		slogfield.String("addr", r.Addr().String()),
		slogfield.Int("workers", pool.Size()),
		slogfield.Int("routes", s.registry.Len()),
	)
	return fixedpool.Wait(ctx, pool.Run, r.Serve)
}

func (s *Server) signalListening() {
	s.listenOnce.Do(func() {
		close(s.listening)
	})
}

func readOr[T any](ctx context.Context, def T, r config.Reader[T]) (T, error) {
	if r == nil {
		return def, nil
	}
	return config.Read(ctx, config.Default(def, r))
}
