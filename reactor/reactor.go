// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package reactor accepts connections and reports their readiness to a
// [Dispatcher]. It never reads from or writes to a connection itself.
package reactor

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/z5labs/evhttp/internal/socket"
	"github.com/z5labs/evhttp/pkg/otelslog"
	"github.com/z5labs/evhttp/pkg/slogfield"
	"github.com/z5labs/evhttp/worker"
)

// Defaults used when no [Option] overrides them.
const (
	DefaultBacklog    = 128
	DefaultEventBatch = 128
)

// Dispatcher receives every message produced by the [Reactor].
// Dispatch must not block.
type Dispatcher interface {
	Dispatch(worker.Message)
}

type options struct {
	logHandler slog.Handler
	backlog    int
	eventBatch int
}

// Option configures a [Reactor].
type Option func(*options)

// LogHandler configures the underlying [slog.Handler].
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = otelslog.NewHandler(h)
	}
}

// Backlog sets the listen backlog.
func Backlog(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.backlog = n
		}
	}
}

// EventBatch sets how many readiness events are taken per poll.
func EventBatch(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.eventBatch = n
		}
	}
}

// Reactor is a single threaded accept and readiness loop.
type Reactor struct {
	addr string
	d    Dispatcher
	log  *slog.Logger
	opts options

	mu     sync.Mutex
	ln     *socket.Listener
	poll   *poller
	nextID uint64

	serving atomic.Bool
}

// New initializes a [Reactor] which will listen on addr and hand every
// connection over to d.
func New(addr string, d Dispatcher, opts ...Option) *Reactor {
	o := options{
		logHandler: otelslog.Discard{},
		backlog:    DefaultBacklog,
		eventBatch: DefaultEventBatch,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Reactor{
		addr: addr,
		d:    d,
		log:  slog.New(o.logHandler),
		opts: o,
	}
}

// Listen binds the listening socket and creates the poller.
func (r *Reactor) Listen() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ln, err := socket.Listen(r.addr, r.opts.backlog)
	if err != nil {
		return BindError{Addr: r.addr, Cause: err}
	}

	p, err := newPoller(r.opts.eventBatch)
	if err != nil {
		ln.Close()
		return err
	}

	err = p.addListener(ln.Fd())
	if err != nil {
		p.close()
		ln.Close()
		return PollerError{Op: "register", Cause: err}
	}

	r.ln = ln
	r.poll = p
	return nil
}

// Addr returns the bound address or nil if not listening.
func (r *Reactor) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ln == nil {
		return nil
	}
	return r.ln.Addr()
}

// Healthy implements the [health.Metric] interface. A [Reactor] is
// healthy while it is serving.
func (r *Reactor) Healthy(ctx context.Context) bool {
	return r.serving.Load()
}

// Run is [Reactor.Listen] followed by [Reactor.Serve].
func (r *Reactor) Run(ctx context.Context) error {
	err := r.Listen()
	if err != nil {
		return err
	}
	return r.Serve(ctx)
}

// Serve runs the event loop until ctx is cancelled or polling fails.
// The listener and poller are closed before it returns.
func (r *Reactor) Serve(ctx context.Context) error {
	r.mu.Lock()
	ln, p := r.ln, r.poll
	r.mu.Unlock()
	if ln == nil || p == nil {
		return ErrNotListening
	}

	defer r.shutdown(ctx)

	// the waker must be gone before the poller is closed
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			p.wake()
		case <-done:
		}
	}()
	defer wg.Wait()
	defer close(done)

	r.serving.Store(true)
	r.log.InfoContext(ctx, "listening for connections", slogfield.String("addr", ln.Addr().String()))

	var events []event
	for {
		var err error
		events, err = p.wait(events)
		if err != nil {
			return PollerError{Op: "wait", Cause: err}
		}

		for _, ev := range events {
			switch ev.id {
			case wakeID:
				return nil
			case listenerID:
				err = r.acceptAll(ctx, ln, p)
				if err != nil {
					return err
				}
			default:
				r.d.Dispatch(worker.ConnectionEvent{
					ID:        worker.ConnectionID(ev.id),
					Readiness: ev.readiness,
				})
			}
		}
	}
}

func (r *Reactor) acceptAll(ctx context.Context, ln *socket.Listener, p *poller) error {
	for {
		s, err := ln.Accept()
		if errors.Is(err, socket.ErrWouldBlock) {
			return nil
		}
		if err != nil {
			return AcceptError{Cause: err}
		}

		r.nextID++
		id := r.nextID

		// registering first means no readiness can be reported for an
		// id its worker has not been told about yet
		err = p.add(s.Fd(), id)
		if err != nil {
			r.log.WarnContext(ctx, "failed to register connection", slogfield.ConnectionID(id), slogfield.Error(err))
			s.Close()
			continue
		}

		r.d.Dispatch(worker.NewConnection{
			ID:     worker.ConnectionID(id),
			Socket: s,
		})
	}
}

func (r *Reactor) shutdown(ctx context.Context) {
	r.serving.Store(false)

	r.mu.Lock()
	defer r.mu.Unlock()

	err := errors.Join(r.ln.Close(), r.poll.close())
	if err != nil {
		r.log.WarnContext(ctx, "failed to close reactor cleanly", slogfield.Error(err))
	}
	r.ln = nil
	r.poll = nil
	r.log.InfoContext(ctx, "stopped listening for connections")
}
