// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package httpclient provides the [http.Client] used to push telemetry
// to an OTLP/HTTP collector. Requests are logged, retried with backoff
// and guarded by a circuit breaker so an unavailable collector is not
// hammered.
package httpclient

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/z5labs/evhttp/pkg/otelslog"
	"github.com/z5labs/evhttp/pkg/slogfield"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
)

type circuitOptions struct {
	maxRequests uint32
	interval    time.Duration
	timeout     time.Duration
	tripCount   uint32
	statusCodes []int
}

type retryOptions struct {
	maxRetries int
	waitMin    time.Duration
	waitMax    time.Duration
}

type options struct {
	name       string
	timeout    time.Duration
	rt         http.RoundTripper
	logHandler slog.Handler

	co *circuitOptions
	ro *retryOptions
}

// Option configures the [http.Client] returned by [New].
type Option func(*options)

// Name identifies the client in logs and in the circuit breaker.
func Name(s string) Option {
	return func(o *options) {
		o.name = s
	}
}

// RoundTripper sets the transport requests are finally sent with.
func RoundTripper(rt http.RoundTripper) Option {
	return func(o *options) {
		o.rt = rt
	}
}

// Timeout bounds every request, retries included.
func Timeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// LogHandler configures the underlying [slog.Handler].
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = otelslog.NewHandler(h)
	}
}

func withCircuit(f func(*circuitOptions)) Option {
	return func(o *options) {
		if o.co == nil {
			o.co = &circuitOptions{tripCount: 5, timeout: 30 * time.Second}
		}
		f(o.co)
	}
}

// TripAfter opens the circuit after n consecutive failures.
func TripAfter(n uint32) Option {
	return withCircuit(func(co *circuitOptions) {
		co.tripCount = max(n, 1)
	})
}

// TripOn sets the response status codes counted as failures.
func TripOn(codes ...int) Option {
	return withCircuit(func(co *circuitOptions) {
		co.statusCodes = codes
	})
}

// OpenStateTimeout is how long the circuit stays open before letting
// requests through again.
func OpenStateTimeout(d time.Duration) Option {
	return withCircuit(func(co *circuitOptions) {
		co.timeout = d
	})
}

// HalfOpenRequests is how many requests are let through while half open.
func HalfOpenRequests(n uint32) Option {
	return withCircuit(func(co *circuitOptions) {
		co.maxRequests = n
	})
}

// CountResetInterval clears the failure counts while closed.
func CountResetInterval(d time.Duration) Option {
	return withCircuit(func(co *circuitOptions) {
		co.interval = d
	})
}

// Retry retries failed requests up to n times, waiting between waitMin
// and waitMax with exponential backoff.
func Retry(n int, waitMin, waitMax time.Duration) Option {
	return func(o *options) {
		o.ro = &retryOptions{
			maxRetries: n,
			waitMin:    waitMin,
			waitMax:    waitMax,
		}
	}
}

// New returns an [http.Client] configured by opts.
func New(opts ...Option) *http.Client {
	o := &options{
		rt:         http.DefaultTransport,
		logHandler: otelslog.Discard{},
	}
	for _, opt := range opts {
		opt(o)
	}

	logger := slog.New(o.logHandler)
	if o.name != "" {
		logger = logger.With(slogfield.String("http_client", o.name))
	}

	var rt http.RoundTripper = &logRoundTripper{
		base: o.rt,
		log:  logger,
	}
	if o.co != nil {
		rt = newCircuitRoundTripper(o.name, rt, o.co, logger)
	}
	if o.ro == nil {
		return &http.Client{
			Timeout:   o.timeout,
			Transport: rt,
		}
	}

	rc := retryablehttp.Client{
		HTTPClient: &http.Client{
			Transport: rt,
		},
		Logger:       logger,
		RetryWaitMin: o.ro.waitMin,
		RetryWaitMax: o.ro.waitMax,
		RetryMax:     o.ro.maxRetries,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}
	c := rc.StandardClient()
	c.Timeout = o.timeout
	return c
}

type logRoundTripper struct {
	base http.RoundTripper
	log  *slog.Logger
}

func (rt *logRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()

	resp, err := rt.base.RoundTrip(req)
	if err != nil {
		rt.log.WarnContext(
			ctx,
			"request failed",
			slogfield.String("url", req.URL.String()),
			slogfield.Duration("latency", time.Since(start)),
			slogfield.Error(err),
		)
		return nil, err
	}
	rt.log.DebugContext(
		ctx,
		"response received",
		slogfield.String("url", req.URL.String()),
		slogfield.Int("status_code", resp.StatusCode),
		slogfield.Duration("latency", time.Since(start)),
	)
	return resp, nil
}

// StatusCodeError is counted by the circuit breaker as a failure. It's
// never returned to the caller, who still gets the response.
type StatusCodeError struct {
	Code int
}

// Error implements the [builtin.error] interface.
func (e StatusCodeError) Error() string {
	return fmt.Sprintf("httpclient: unsuccessful status code: %d", e.Code)
}

type circuitRoundTripper struct {
	base  http.RoundTripper
	cb    *gobreaker.CircuitBreaker
	codes map[int]struct{}
}

func newCircuitRoundTripper(name string, base http.RoundTripper, co *circuitOptions, logger *slog.Logger) *circuitRoundTripper {
	statusCodes := co.statusCodes
	if len(statusCodes) == 0 {
		statusCodes = []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		}
	}
	codes := make(map[int]struct{}, len(statusCodes))
	for _, code := range statusCodes {
		codes[code] = struct{}{}
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: co.maxRequests,
		Interval:    co.interval,
		Timeout:     co.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= co.tripCount
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			switch to {
			case gobreaker.StateOpen:
				logger.Error("circuit has been opened")
			case gobreaker.StateHalfOpen:
				logger.Warn("circuit is half open", slogfield.Uint64("max_requests", uint64(co.maxRequests)))
			case gobreaker.StateClosed:
				logger.Info("circuit has been closed")
			}
		},
	})

	return &circuitRoundTripper{
		base:  base,
		cb:    cb,
		codes: codes,
	}
}

func (rt *circuitRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	v, err := rt.cb.Execute(func() (interface{}, error) {
		resp, err := rt.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if _, ok := rt.codes[resp.StatusCode]; ok {
			return resp, StatusCodeError{Code: resp.StatusCode}
		}
		return resp, nil
	})

	var serr StatusCodeError
	if err != nil && !errors.As(err, &serr) {
		return nil, err
	}
	return v.(*http.Response), nil
}
