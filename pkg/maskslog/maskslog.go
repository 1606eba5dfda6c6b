// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package maskslog provides a [slog.Handler] which rewrites selected
// attributes before they reach the wrapped handler.
package maskslog

import (
	"context"
	"log/slog"
	"strings"
)

// Masker rewrites a single attribute.
type Masker func(slog.Attr) slog.Attr

// Option helps configure the Handler.
type Option func(map[string]Masker)

// Attr registers m for every attribute with the given key, whether it's
// attached to a record or to a logger via With.
func Attr(key string, m Masker) Option {
	return func(maskers map[string]Masker) {
		maskers[key] = m
	}
}

// Anonymous replaces the attribute value with "****".
func Anonymous(a slog.Attr) slog.Attr {
	return slog.String(a.Key, "****")
}

// QueryValues keeps the path and query parameter names of a request
// target but replaces every parameter value with "****".
func QueryValues(a slog.Attr) slog.Attr {
	uri := a.Value.String()
	path, query, ok := strings.Cut(uri, "?")
	if !ok {
		return a
	}

	var sb strings.Builder
	sb.WriteString(path)
	sb.WriteByte('?')
	for i, pair := range strings.Split(query, "&") {
		if i > 0 {
			sb.WriteByte('&')
		}
		name, _, _ := strings.Cut(pair, "=")
		sb.WriteString(name)
		sb.WriteString("=****")
	}
	return slog.String(a.Key, sb.String())
}

// Handler is a [slog.Handler] which masks attributes.
type Handler struct {
	next    slog.Handler
	maskers map[string]Masker
}

// NewHandler returns a Handler wrapping next.
func NewHandler(next slog.Handler, opts ...Option) *Handler {
	maskers := make(map[string]Masker)
	for _, opt := range opts {
		opt(maskers)
	}
	return &Handler{next: next, maskers: maskers}
}

func (h *Handler) mask(a slog.Attr) slog.Attr {
	m, ok := h.maskers[a.Key]
	if !ok {
		return a
	}
	return m(a)
}

// Enabled implements the [slog.Handler] interface.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements the [slog.Handler] interface.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if len(h.maskers) == 0 {
		return h.next.Handle(ctx, r)
	}

	masked := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(h.mask(a))
		return true
	})
	return h.next.Handle(ctx, masked)
}

// WithAttrs implements the [slog.Handler] interface.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.mask(a)
	}
	return &Handler{next: h.next.WithAttrs(masked), maskers: h.maskers}
}

// WithGroup implements the [slog.Handler] interface.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name), maskers: h.maskers}
}
