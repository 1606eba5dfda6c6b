// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package evhttp is a small event-driven HTTP/1.x server engine.
//
// A single reactor goroutine owns the listening socket and an epoll
// instance. It accepts connections, assigns each one a monotonically
// increasing identity and forwards readiness notifications to a fixed
// pool of workers. A connection is always owned by worker id mod N so
// its parser and response state are never shared between goroutines.
//
// # Serving requests
//
//	srv := evhttp.NewServer(
//	    evhttp.Addr(config.ReaderOf("127.0.0.1:8080")),
//	    evhttp.Workers(config.ReaderOf(4)),
//	)
//	srv.Handle("/hello", router.HandlerFunc(func(ctx context.Context, req *http1.Request, w *http1.ResponseWriter) {
//	    w.WriteString("hi")
//	    w.Send()
//	}))
//	err := srv.Run(ctx)
//
// # Composition
//
// The server is assembled from three small abstractions which the cmd
// package composes with signal handling and telemetry:
//
//   - Builder[T]: constructs a component with access to a context
//   - Runtime: something which runs until its context is cancelled
//   - Runner[T]: builds a Runtime and runs it
//
// Map and Bind chain builders together. DefaultRunner also installs a
// lifecycle.Context so builders can register post-run hooks, such as
// flushing OpenTelemetry exporters once the server stops.
package evhttp
