// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package slogfield provides typed slog.Attr constructors for the
// fields evhttp logs over and over again.
package slogfield

import (
	"log/slog"
	"time"
)

// Any returns an slog.Attr for the supplied value.
func Any(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// Bool returns an slog.Attr for a bool.
func Bool(key string, value bool) slog.Attr {
	return slog.Bool(key, value)
}

// Duration returns an slog.Attr for a time.Duration.
func Duration(key string, d time.Duration) slog.Attr {
	return slog.Duration(key, d)
}

// Error returns an slog.Attr for a error.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// String returns an slog.Attr for a string.
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Int returns an slog.Attr for a int.
func Int(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Uint64 returns an slog.Attr for a uint64.
func Uint64(key string, n uint64) slog.Attr {
	return slog.Uint64(key, n)
}

// ConnectionID returns the slog.Attr used to correlate every log line
// belonging to a single client connection.
func ConnectionID(id uint64) slog.Attr {
	return slog.Uint64("connection_id", id)
}

// Worker returns the slog.Attr identifying which worker emitted a log line.
func Worker(index int) slog.Attr {
	return slog.Int("worker", index)
}

// Path returns an slog.Attr for a request path.
func Path(path string) slog.Attr {
	return slog.String("path", path)
}

// URI returns an slog.Attr for a raw request target, query included.
func URI(uri string) slog.Attr {
	return slog.String("uri", uri)
}

// TraceID returns the slog.Attr correlating a log line with a trace.
func TraceID(id string) slog.Attr {
	return slog.String("trace_id", id)
}

// SpanID returns the slog.Attr correlating a log line with a span.
func SpanID(id string) slog.Attr {
	return slog.String("span_id", id)
}
