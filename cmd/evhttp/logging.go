// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/z5labs/evhttp/pkg/maskslog"

	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// newLogHandler logs to w in the configured format, unless telemetry
// is enabled in which case records are bridged to the global
// OpenTelemetry logger provider instead. Query values are masked
// unless log-mask-query is false.
func newLogHandler(v *viper.Viper, w io.Writer) (slog.Handler, error) {
	h, err := newBaseLogHandler(v, w)
	if err != nil {
		return nil, err
	}
	if v.IsSet("log-mask-query") && !v.GetBool("log-mask-query") {
		return h, nil
	}
	return maskslog.NewHandler(h, maskslog.Attr("uri", maskslog.QueryValues)), nil
}

func newBaseLogHandler(v *viper.Viper, w io.Writer) (slog.Handler, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(v.GetString("log-level")))
	if err != nil {
		return nil, err
	}

	if mode := v.GetString("otel"); mode != "" && mode != "none" {
		return leveled{next: otelslog.NewHandler("github.com/z5labs/evhttp"), level: level}, nil
	}

	switch format := v.GetString("log-format"); format {
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}), nil
	case "text":
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}), nil
	case "zap":
		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(w),
			zapLevel(level),
		)
		return zapslog.NewHandler(core), nil
	default:
		return nil, fmt.Errorf("unknown log format: %q", format)
	}
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l < slog.LevelInfo:
		return zapcore.DebugLevel
	case l < slog.LevelWarn:
		return zapcore.InfoLevel
	case l < slog.LevelError:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// leveled drops records below level before they reach next, which
// otherwise has no notion of a minimum level.
type leveled struct {
	next  slog.Handler
	level slog.Level
}

func (h leveled) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level && h.next.Enabled(ctx, l)
}

func (h leveled) Handle(ctx context.Context, r slog.Record) error {
	return h.next.Handle(ctx, r)
}

func (h leveled) WithAttrs(attrs []slog.Attr) slog.Handler {
	return leveled{next: h.next.WithAttrs(attrs), level: h.level}
}

func (h leveled) WithGroup(name string) slog.Handler {
	return leveled{next: h.next.WithGroup(name), level: h.level}
}
