// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otelslog correlates log records with OpenTelemetry traces.
package otelslog

import (
	"context"
	"log/slog"

	"github.com/z5labs/evhttp/pkg/slogfield"

	"go.opentelemetry.io/otel/trace"
)

// Handler stamps every record logged with a span in its context with
// that span's trace_id, span_id and sampled flag.
type Handler struct {
	next slog.Handler
}

// NewHandler wraps next. A nil next discards every record, so
// components can always log without checking whether logging was
// configured.
func NewHandler(next slog.Handler) *Handler {
	if next == nil {
		next = Discard{}
	}
	return &Handler{next: next}
}

// New is shorthand for slog.New(NewHandler(next)).
func New(next slog.Handler) *slog.Logger {
	return slog.New(NewHandler(next))
}

// Enabled implements the [slog.Handler] interface.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements the [slog.Handler] interface.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		r = r.Clone()
		r.AddAttrs(
			slogfield.TraceID(sc.TraceID().String()),
			slogfield.SpanID(sc.SpanID().String()),
			slogfield.Bool("sampled", sc.IsSampled()),
		)
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs implements the [slog.Handler] interface.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{next: h.next.WithAttrs(attrs)}
}

// WithGroup implements the [slog.Handler] interface.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name)}
}

// Discard drops every record. Components default to it.
type Discard struct{}

// Enabled implements the [slog.Handler] interface.
func (Discard) Enabled(context.Context, slog.Level) bool { return false }

// Handle implements the [slog.Handler] interface.
func (Discard) Handle(context.Context, slog.Record) error { return nil }

// WithAttrs implements the [slog.Handler] interface.
func (d Discard) WithAttrs([]slog.Attr) slog.Handler { return d }

// WithGroup implements the [slog.Handler] interface.
func (d Discard) WithGroup(string) slog.Handler { return d }
