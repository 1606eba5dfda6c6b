// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package router maps request paths to handlers.
package router

import (
	"context"
	"fmt"
	"regexp"

	"github.com/z5labs/evhttp/http1"
)

// Handler processes a request by writing a response.
//
// Every worker receives its own copy of each handler, created with
// Duplicate, so a handler may keep mutable state without locking.
type Handler interface {
	Process(context.Context, *http1.Request, *http1.ResponseWriter)
	Duplicate() Handler
}

// HandlerFunc adapts a stateless func to the [Handler] interface.
type HandlerFunc func(context.Context, *http1.Request, *http1.ResponseWriter)

// Process implements the [Handler] interface.
func (f HandlerFunc) Process(ctx context.Context, req *http1.Request, w *http1.ResponseWriter) {
	f(ctx, req, w)
}

// Duplicate implements the [Handler] interface.
func (f HandlerFunc) Duplicate() Handler {
	return f
}

// PatternError occurs when a route pattern is not a valid regular expression.
type PatternError struct {
	Pattern string
	Cause   error
}

// Error implements the [builtin.error] interface.
func (e PatternError) Error() string {
	return fmt.Sprintf("router: invalid pattern %q: %s", e.Pattern, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e PatternError) Unwrap() error {
	return e.Cause
}

type route struct {
	pattern string
	re      *regexp.Regexp
	handler Handler
}

// Registry is an ordered list of routes. A pattern must match the whole
// request path and the first registered match wins.
type Registry struct {
	routes []route
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{}
}

// Handle registers h for paths fully matching the regular expression pattern.
func (r *Registry) Handle(pattern string, h Handler) error {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return PatternError{Pattern: pattern, Cause: err}
	}
	r.routes = append(r.routes, route{
		pattern: pattern,
		re:      re,
		handler: h,
	})
	return nil
}

// Match returns the handler of the first route matching path.
func (r *Registry) Match(path string) (Handler, bool) {
	for _, rt := range r.routes {
		if rt.re.MatchString(path) {
			return rt.handler, true
		}
	}
	return nil, false
}

// Patterns returns the registered patterns in match order.
func (r *Registry) Patterns() []string {
	ps := make([]string, len(r.routes))
	for i, rt := range r.routes {
		ps[i] = rt.pattern
	}
	return ps
}

// Len returns the number of registered routes.
func (r *Registry) Len() int {
	return len(r.routes)
}

// Duplicate returns a [Registry] with the same routes where every
// handler has been replaced by its Duplicate.
func (r *Registry) Duplicate() *Registry {
	routes := make([]route, len(r.routes))
	for i, rt := range r.routes {
		routes[i] = route{
			pattern: rt.pattern,
			re:      rt.re,
			handler: rt.handler.Duplicate(),
		}
	}
	return &Registry{routes: routes}
}
