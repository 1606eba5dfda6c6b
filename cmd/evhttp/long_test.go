// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/z5labs/evhttp/http1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLongHandler(t *testing.T) {
	t.Run("will announce exactly the bytes it sends", func(t *testing.T) {
		var out bytes.Buffer
		w := http1.NewResponseWriter(&out)
		h := longHandler{chunks: 5, interval: time.Millisecond}

		h.Process(context.Background(), &http1.Request{Method: "GET", URI: "/long?x=1", Path: "/long"}, w)
		require.NoError(t, w.Err())

		resp, err := http.ReadResponse(bufio.NewReader(&out), nil)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		want := "<h1>Long page!!</h1>This is very /long?x=1" + strings.Repeat(longChunk, 5)
		assert.Equal(t, int64(len(want)), resp.ContentLength)
		assert.Equal(t, want, string(body))
		assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))
	})

	t.Run("will abort the response", func(t *testing.T) {
		t.Run("if the context is cancelled", func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			var out bytes.Buffer
			w := http1.NewResponseWriter(&out)
			h := longHandler{chunks: 5, interval: time.Hour}

			h.Process(ctx, &http1.Request{Method: "GET", URI: "/long", Path: "/long"}, w)

			assert.ErrorIs(t, w.Err(), context.Canceled)
			assert.True(t, strings.HasSuffix(out.String(), "/long"+longChunk))
		})
	})
}
