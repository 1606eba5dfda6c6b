// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package lifecycle lets components built while assembling a server
// register work that must happen once the server has stopped, such as
// flushing telemetry exporters.
package lifecycle

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// Hook is work performed at a fixed point relative to a server run.
type Hook interface {
	Run(context.Context) error
}

// HookFunc is a func variant of the [Hook] interface.
type HookFunc func(context.Context) error

// Run implements the [Hook] interface.
func (f HookFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type joinedHooks []Hook

func (hs joinedHooks) Run(ctx context.Context) error {
	var errs []error
	for _, h := range hs {
		err := h.Run(ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Join returns a [Hook] which runs every hook in order. All hooks run
// even if an earlier one fails and the failures are joined.
func Join(hooks ...Hook) Hook {
	return joinedHooks(hooks)
}

// Context collects the post-run hooks registered during a build.
type Context struct {
	mu       sync.Mutex
	postRuns []Hook
}

// OnPostRun registers a hook to run after the server returns.
func (c *Context) OnPostRun(hook Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.postRuns = append(c.postRuns, hook)
}

// PostRun returns the registered hooks joined into one. Hooks run in
// reverse registration order, the same way deferred calls do, so that
// something registered early is torn down last.
func (c *Context) PostRun() Hook {
	c.mu.Lock()
	defer c.mu.Unlock()
	hooks := slices.Clone(c.postRuns)
	slices.Reverse(hooks)
	return joinedHooks(hooks)
}

type key struct{}

var contextKey = &key{}

// NewContext returns a new [context.Context] carrying c.
func NewContext(parent context.Context, c *Context) context.Context {
	return context.WithValue(parent, contextKey, c)
}

// FromContext extracts the lifecycle [Context] from ctx, if present.
func FromContext(ctx context.Context) (*Context, bool) {
	lc, ok := ctx.Value(contextKey).(*Context)
	return lc, ok
}

// OnPostRun registers hook with the lifecycle [Context] carried by ctx.
// It reports false when ctx carries none, in which case the caller
// still owns running the hook.
func OnPostRun(ctx context.Context, hook Hook) bool {
	lc, ok := FromContext(ctx)
	if !ok {
		return false
	}
	lc.OnPostRun(hook)
	return true
}
