// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package worker owns connection state and serves requests. Each
// connection belongs to exactly one worker for its whole life, so
// nothing a worker touches is shared with another goroutine.
package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/z5labs/evhttp/http1"
	"github.com/z5labs/evhttp/internal/socket"
	"github.com/z5labs/evhttp/internal/try"
	"github.com/z5labs/evhttp/pkg/slogfield"
	"github.com/z5labs/evhttp/router"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// maxDrainReads bounds how much is read from a connection which is
// already known to be failing.
const maxDrainReads = 64

// Worker serves every connection whose id maps to its index.
type Worker struct {
	index    int
	log      *slog.Logger
	registry *router.Registry
	mailbox  *mailbox
	opts     *options
	inst     instruments
	now      func() time.Time

	conns   map[ConnectionID]*Connection
	readBuf []byte
}

func newWorker(index int, registry *router.Registry, o *options, inst instruments) *Worker {
	return &Worker{
		index:    index,
		log:      slog.New(o.logHandler).With(slogfield.Worker(index)),
		registry: registry,
		mailbox:  newMailbox(),
		opts:     o,
		inst:     inst,
		now:      time.Now,
		conns:    make(map[ConnectionID]*Connection),
		readBuf:  make([]byte, o.readBufferSize),
	}
}

// Run processes messages in the order they were dispatched until ctx
// is cancelled. Every connection still owned is closed before it returns.
func (w *Worker) Run(ctx context.Context) error {
	ctx = context.WithValue(ctx, workerIndexKey{}, w.index)

	var sweep <-chan time.Time
	if w.opts.idleTimeout > 0 {
		ticker := time.NewTicker(w.opts.sweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	var batch []Message
	for {
		select {
		case <-ctx.Done():
			w.closeAll(ctx)
			return nil
		case <-w.mailbox.notify:
			batch = w.mailbox.take(batch)
			for _, msg := range batch {
				w.handle(ctx, msg)
			}
		case now := <-sweep:
			w.evictIdle(ctx, now)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg Message) {
	switch m := msg.(type) {
	case NewConnection:
		if old, ok := w.conns[m.ID]; ok {
			w.log.WarnContext(ctx, "replacing connection with duplicate id", slogfield.ConnectionID(uint64(m.ID)))
			w.drop(ctx, old)
		}
		w.conns[m.ID] = newConnection(m.ID, m.Socket, w.now(), w.opts)
		w.inst.connsOpened.Add(ctx, 1, workerAttr(w.index))
		w.log.DebugContext(ctx, "accepted connection", slogfield.ConnectionID(uint64(m.ID)))
	case ConnectionEvent:
		c, ok := w.conns[m.ID]
		if !ok {
			w.log.DebugContext(
				ctx,
				"ignoring event for unknown connection",
				slogfield.ConnectionID(uint64(m.ID)),
				slogfield.String("readiness", m.Readiness.String()),
			)
			return
		}
		switch m.Readiness {
		case Readable:
			w.readable(ctx, c)
		case ErrorOrHangup:
			w.hangup(ctx, c)
		}
	}
}

// readable reads until the socket would block, serving every request
// which completes along the way.
func (w *Worker) readable(ctx context.Context, c *Connection) {
	for {
		n, err := c.sock.Read(w.readBuf)
		if n > 0 {
			c.lastActive = w.now()
			if !w.feed(ctx, c, w.readBuf[:n]) {
				w.drop(ctx, c)
				return
			}
		}
		if errors.Is(err, socket.ErrWouldBlock) || errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			w.log.DebugContext(ctx, "failed to read from connection", slogfield.ConnectionID(uint64(c.id)), slogfield.Error(err))
			w.drop(ctx, c)
			return
		}
		if n == 0 {
			return
		}
	}
}

// hangup serves whatever complete requests can still be read from a
// failing connection and then closes it.
func (w *Worker) hangup(ctx context.Context, c *Connection) {
	for range maxDrainReads {
		n, err := c.sock.Read(w.readBuf)
		if n > 0 && !w.feed(ctx, c, w.readBuf[:n]) {
			break
		}
		if err != nil || n == 0 {
			break
		}
	}
	w.drop(ctx, c)
}

// feed appends b to the connection parser and serves every request
// which is now complete. It reports false once the connection must be
// dropped.
func (w *Worker) feed(ctx context.Context, c *Connection, b []byte) bool {
	_, err := c.parser.Write(b)
	if err != nil {
		w.parseFailed(ctx, c, err)
		return false
	}
	for {
		req, err := c.parser.Next()
		if err != nil {
			w.parseFailed(ctx, c, err)
			return false
		}
		if req == nil {
			return true
		}
		if !w.serve(ctx, c, req) {
			return false
		}
		// idle time starts once the response is written
		c.lastActive = w.now()
	}
}

func (w *Worker) parseFailed(ctx context.Context, c *Connection, err error) {
	w.inst.parseErrors.Add(ctx, 1, workerAttr(w.index))
	w.log.DebugContext(ctx, "dropping connection with malformed request", slogfield.ConnectionID(uint64(c.id)), slogfield.Error(err))
}

func (w *Worker) serve(ctx context.Context, c *Connection, req *http1.Request) bool {
	start := w.now()

	ctx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier(req.Header))
	spanCtx, span := otel.Tracer(instrumentationName).Start(
		ctx,
		"Worker.serve",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.URLPath(req.Path),
		),
	)
	defer span.End()

	err := w.process(spanCtx, c, req)
	if err == nil {
		err = c.w.Err()
	}
	status := c.w.SentStatus()
	c.w.Reset()

	w.inst.requests.Add(spanCtx, 1, workerAttr(w.index))
	w.inst.duration.Record(spanCtx, w.now().Sub(start).Seconds(), workerAttr(w.index))
	if status != 0 {
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))
	}

	if err == nil {
		w.log.DebugContext(
			spanCtx,
			"served request",
			slogfield.ConnectionID(uint64(c.id)),
			slogfield.URI(req.URI),
			slogfield.Int("status_code", status),
		)
		return true
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	level := slog.LevelDebug
	var perr try.PanicError
	if errors.As(err, &perr) {
		level = slog.LevelError
	}
	w.log.Log(
		spanCtx,
		level,
		"dropping connection after failing to serve request",
		slogfield.ConnectionID(uint64(c.id)),
		slogfield.Path(req.Path),
		slogfield.Error(err),
	)
	return false
}

func (w *Worker) process(ctx context.Context, c *Connection, req *http1.Request) (err error) {
	defer try.Recover(&err)

	h, ok := w.registry.Match(req.Path)
	if !ok {
		return http1.NotFound(c.w)
	}

	h.Process(ctx, req, c.w)
	if c.w.Sent() {
		return nil
	}
	return c.w.Send()
}

func (w *Worker) evictIdle(ctx context.Context, now time.Time) {
	for _, c := range w.conns {
		if now.Sub(c.lastActive) < w.opts.idleTimeout {
			continue
		}
		w.log.DebugContext(ctx, "evicting idle connection", slogfield.ConnectionID(uint64(c.id)))
		w.drop(ctx, c)
	}
}

func (w *Worker) drop(ctx context.Context, c *Connection) {
	delete(w.conns, c.id)

	var err error
	if serr := c.sock.Shutdown(); serr != nil {
		err = serr
	}
	try.Close(&err, c.sock)
	if err != nil {
		w.log.DebugContext(ctx, "failed to close connection cleanly", slogfield.ConnectionID(uint64(c.id)), slogfield.Error(err))
	}

	w.inst.connsClosed.Add(context.WithoutCancel(ctx), 1, workerAttr(w.index))
}

func (w *Worker) closeAll(ctx context.Context) {
	for _, c := range w.conns {
		w.drop(ctx, c)
	}

	// sockets handed over after cancellation would otherwise leak
	for _, msg := range w.mailbox.take(nil) {
		nc, ok := msg.(NewConnection)
		if !ok {
			continue
		}
		nc.Socket.Shutdown()
		nc.Socket.Close()
	}
}
