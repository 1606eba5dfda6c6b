// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package worker

import (
	"context"

	"github.com/z5labs/evhttp/pkg/otelslog"
	"github.com/z5labs/evhttp/router"

	"golang.org/x/sync/errgroup"
)

// Pool is a fixed set of workers. Connections are partitioned across
// them by id so every message for a connection reaches the same worker.
type Pool struct {
	workers []*Worker
}

// NewPool creates n workers, each with its own duplicate of registry.
// n is raised to 1 if smaller.
func NewPool(n int, registry *router.Registry, opts ...Option) *Pool {
	o := &options{
		logHandler:     otelslog.Discard{},
		idleTimeout:    DefaultIdleTimeout,
		sweepInterval:  DefaultSweepInterval,
		readBufferSize: DefaultReadBufferSize,
		writeTimeout:   DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}

	n = max(n, 1)
	inst := newInstruments()
	workers := make([]*Worker, n)
	for i := range workers {
		workers[i] = newWorker(i, registry.Duplicate(), o, inst)
	}
	return &Pool{workers: workers}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Owner returns the index of the worker owning id.
func (p *Pool) Owner(id ConnectionID) int {
	return int(uint64(id) % uint64(len(p.workers)))
}

// Dispatch queues msg on the worker owning its connection. It never blocks.
func (p *Pool) Dispatch(msg Message) {
	p.workers[p.Owner(msg.ConnectionID())].mailbox.push(msg)
}

// Run runs every worker until ctx is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	return g.Wait()
}
