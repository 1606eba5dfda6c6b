// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/z5labs/evhttp/http1"
	"github.com/z5labs/evhttp/router"
)

const longChunk = "sunny<3<br/>"

// longHandler trickles a page out slowly, one chunk per interval. It
// occupies its worker for the whole response which makes it handy for
// watching other connections of the same worker queue up.
type longHandler struct {
	chunks   int
	interval time.Duration
}

func (h longHandler) Process(ctx context.Context, req *http1.Request, w *http1.ResponseWriter) {
	head := "<h1>Long page!!</h1>This is very " + req.URI

	w.SetStatus(http.StatusOK)
	w.SetHeader("Content-Type", "text/html")
	w.WriteString(head)
	w.SetContentLength(len(head) + h.chunks*len(longChunk))
	if w.Send() != nil {
		return
	}

	for i := range h.chunks {
		if i > 0 {
			select {
			case <-ctx.Done():
				w.Abort(ctx.Err())
				return
			case <-time.After(h.interval):
			}
		}
		if w.SendRaw([]byte(longChunk)) != nil {
			return
		}
	}
}

func (h longHandler) Duplicate() router.Handler {
	return h
}
