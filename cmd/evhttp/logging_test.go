// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/z5labs/evhttp/pkg/slogfield"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogHandler(t *testing.T) {
	testCases := []struct {
		Name   string
		Format string
		Want   string
	}{
		{Name: "json", Format: "json", Want: `"msg":"hello"`},
		{Name: "text", Format: "text", Want: `msg=hello`},
		{Name: "zap", Format: "zap", Want: `"msg":"hello"`},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			v := viper.New()
			v.Set("log-format", testCase.Format)
			v.Set("log-level", "info")

			var buf bytes.Buffer
			h, err := newLogHandler(v, &buf)
			require.NoError(t, err)

			log := slog.New(h)
			log.Debug("hidden")
			log.Info("hello")

			require.Contains(t, buf.String(), testCase.Want)
			require.NotContains(t, buf.String(), "hidden")
		})
	}

	t.Run("will mask query values", func(t *testing.T) {
		v := viper.New()
		v.Set("log-format", "json")
		v.Set("log-level", "debug")

		var buf bytes.Buffer
		h, err := newLogHandler(v, &buf)
		require.NoError(t, err)

		slog.New(h).Debug("served request", slogfield.URI("/hello?name=bob"))

		assert.Contains(t, buf.String(), `"uri":"/hello?name=****"`)
	})

	t.Run("will not mask query values", func(t *testing.T) {
		t.Run("if masking is disabled", func(t *testing.T) {
			v := viper.New()
			v.Set("log-format", "json")
			v.Set("log-level", "debug")
			v.Set("log-mask-query", false)

			var buf bytes.Buffer
			h, err := newLogHandler(v, &buf)
			require.NoError(t, err)

			slog.New(h).Debug("served request", slogfield.URI("/hello?name=bob"))

			assert.Contains(t, buf.String(), `"uri":"/hello?name=bob"`)
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the format is unknown", func(t *testing.T) {
			v := viper.New()
			v.Set("log-format", "xml")
			v.Set("log-level", "info")

			_, err := newLogHandler(v, &bytes.Buffer{})

			assert.Error(t, err)
		})

		t.Run("if the level is unknown", func(t *testing.T) {
			v := viper.New()
			v.Set("log-format", "json")
			v.Set("log-level", "loud")

			_, err := newLogHandler(v, &bytes.Buffer{})

			assert.Error(t, err)
		})
	})

	t.Run("will bridge to OpenTelemetry", func(t *testing.T) {
		t.Run("if telemetry is enabled", func(t *testing.T) {
			v := viper.New()
			v.Set("log-format", "json")
			v.Set("log-level", "info")
			v.Set("otel", "stdout")

			var buf bytes.Buffer
			h, err := newLogHandler(v, &buf)
			require.NoError(t, err)

			slog.New(h).InfoContext(context.Background(), "bridged")
			assert.Empty(t, buf.String())
		})
	})

	t.Run("will honour the log level", func(t *testing.T) {
		t.Run("if telemetry is enabled", func(t *testing.T) {
			v := viper.New()
			v.Set("log-format", "json")
			v.Set("log-level", "warn")
			v.Set("otel", "stdout")

			h, err := newLogHandler(v, &bytes.Buffer{})
			require.NoError(t, err)

			ctx := context.Background()
			assert.False(t, h.Enabled(ctx, slog.LevelDebug))
			assert.False(t, h.Enabled(ctx, slog.LevelInfo))
			assert.False(t, h.WithAttrs([]slog.Attr{slog.Int("worker", 1)}).Enabled(ctx, slog.LevelInfo))
		})
	})
}

func TestLeveled(t *testing.T) {
	t.Run("will drop records below the level", func(t *testing.T) {
		var buf bytes.Buffer
		next := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
		log := slog.New(leveled{next: next, level: slog.LevelWarn}).With(slog.Int("worker", 1))

		log.Debug("served request")
		log.Info("accepted connection")
		log.Warn("replacing connection")

		assert.NotContains(t, buf.String(), "served request")
		assert.NotContains(t, buf.String(), "accepted connection")
		assert.Contains(t, buf.String(), "replacing connection")
	})
}
