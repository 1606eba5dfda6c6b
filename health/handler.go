// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package health

import (
	"context"
	"net/http"

	"github.com/z5labs/evhttp/http1"
	"github.com/z5labs/evhttp/router"

	"github.com/goccy/go-json"
)

// Status is the body served by [Handler].
type Status struct {
	Healthy bool `json:"healthy"`
}

// Handler serves the state of m as JSON. A healthy metric is answered
// with 200 OK and an unhealthy one with 503 Service Unavailable.
//
// The returned handler is stateless so every worker shares m.
func Handler(m Metric) router.Handler {
	return router.HandlerFunc(func(ctx context.Context, req *http1.Request, w *http1.ResponseWriter) {
		status := Status{Healthy: m.Healthy(ctx)}

		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}

		b, err := json.Marshal(status)
		if err != nil {
			w.SetStatus(http.StatusInternalServerError)
			w.Send()
			return
		}

		w.SetStatus(code)
		w.SetHeader("Content-Type", "application/json")
		w.SetHeader("Cache-Control", "no-store")
		w.Write(b)
		w.Send()
	})
}
