// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package worker

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/z5labs/evhttp/http1"
	"github.com/z5labs/evhttp/internal/socket"
	"github.com/z5labs/evhttp/router"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeSocket struct {
	mu       sync.Mutex
	reads    [][]byte
	readErr  error
	out      bytes.Buffer
	writeErr error
	shutdown bool

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeSocket(chunks ...string) *fakeSocket {
	s := &fakeSocket{closed: make(chan struct{})}
	s.feed(chunks...)
	return s
}

func (s *fakeSocket) feed(chunks ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		s.reads = append(s.reads, []byte(c))
	}
}

func (s *fakeSocket) Read(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reads) == 0 {
		if s.readErr != nil {
			return 0, s.readErr
		}
		return 0, socket.ErrWouldBlock
	}
	n := copy(b, s.reads[0])
	if n < len(s.reads[0]) {
		s.reads[0] = s.reads[0][n:]
	} else {
		s.reads = s.reads[1:]
	}
	return n, nil
}

func (s *fakeSocket) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	return s.out.Write(b)
}

func (s *fakeSocket) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	return nil
}

func (s *fakeSocket) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSocket) output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.String()
}

func (s *fakeSocket) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func hello() router.Handler {
	return router.HandlerFunc(func(ctx context.Context, req *http1.Request, w *http1.ResponseWriter) {
		w.WriteString("hi")
		w.Send()
	})
}

func startPool(t *testing.T, n int, reg *router.Registry, opts ...Option) *Pool {
	t.Helper()

	p := NewPool(n, reg, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return p
}

func registry(t *testing.T, routes map[string]router.Handler) *router.Registry {
	t.Helper()

	reg := router.NewRegistry()
	for pattern, h := range routes {
		require.NoError(t, reg.Handle(pattern, h))
	}
	return reg
}

func connect(p *Pool, id ConnectionID, s *fakeSocket) {
	p.Dispatch(NewConnection{ID: id, Socket: s})
	p.Dispatch(ConnectionEvent{ID: id, Readiness: Readable})
}

func TestPool_Owner(t *testing.T) {
	p := NewPool(3, router.NewRegistry())

	for k := range ConnectionID(100) {
		assert.Equal(t, int(k%3), p.Owner(k))
	}
}

func TestNewPool(t *testing.T) {
	t.Run("will create at least one worker", func(t *testing.T) {
		p := NewPool(0, router.NewRegistry())
		assert.Equal(t, 1, p.Size())
	})
}

func TestWorker_Readable(t *testing.T) {
	t.Run("will serve the first matching handler", func(t *testing.T) {
		p := startPool(t, 2, registry(t, map[string]router.Handler{"/hello": hello()}))

		s := newFakeSocket("GET /hello HTTP/1.1\r\nHost: x\r\n\r\n")
		connect(p, 1, s)

		assert.Eventually(t, func() bool {
			return s.output() == "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nhi"
		}, waitFor, tick)
		assert.False(t, s.isClosed())
	})

	t.Run("will send the canned not found response", func(t *testing.T) {
		t.Run("if no handler matches", func(t *testing.T) {
			p := startPool(t, 2, registry(t, map[string]router.Handler{"/hello": hello()}))

			s := newFakeSocket("GET /nope HTTP/1.1\r\n\r\n")
			connect(p, 2, s)

			assert.Eventually(t, func() bool {
				return strings.HasPrefix(s.output(), "HTTP/1.1 404 Not Found\r\n") &&
					strings.HasSuffix(s.output(), "\r\n\r\n"+http1.NotFoundBody)
			}, waitFor, tick)
		})
	})

	t.Run("will answer pipelined requests in order", func(t *testing.T) {
		echo := router.HandlerFunc(func(ctx context.Context, req *http1.Request, w *http1.ResponseWriter) {
			w.WriteString(req.Path)
			w.Send()
		})
		p := startPool(t, 1, registry(t, map[string]router.Handler{"/.*": echo}))

		s := newFakeSocket("GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\n\r\n")
		connect(p, 1, s)

		assert.Eventually(t, func() bool {
			return s.output() == "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\n/a"+
				"HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\n/b"
		}, waitFor, tick)
	})

	t.Run("will resume a request split across events", func(t *testing.T) {
		p := startPool(t, 1, registry(t, map[string]router.Handler{"/hello": hello()}))

		s := newFakeSocket("GET /hel")
		connect(p, 1, s)

		s.feed("lo HTTP/1.1\r\n\r\n")
		p.Dispatch(ConnectionEvent{ID: 1, Readiness: Readable})

		assert.Eventually(t, func() bool {
			return strings.HasSuffix(s.output(), "\r\n\r\nhi")
		}, waitFor, tick)
	})

	t.Run("will flush the response", func(t *testing.T) {
		t.Run("if the handler never calls Send", func(t *testing.T) {
			lazy := router.HandlerFunc(func(ctx context.Context, req *http1.Request, w *http1.ResponseWriter) {
				w.SetStatus(202)
				w.WriteString("later")
			})
			p := startPool(t, 1, registry(t, map[string]router.Handler{"/": lazy}))

			s := newFakeSocket("GET / HTTP/1.1\r\n\r\n")
			connect(p, 1, s)

			assert.Eventually(t, func() bool {
				return s.output() == "HTTP/1.1 202 Accepted\r\nContent-Length: 5\r\n\r\nlater"
			}, waitFor, tick)
		})
	})

	t.Run("will drop the connection silently", func(t *testing.T) {
		testCases := []struct {
			Name string
			Raw  string
		}{
			{Name: "if the request line is malformed", Raw: "GET /\r\n\r\n"},
			{Name: "if the method is not GET", Raw: "DELETE / HTTP/1.1\r\n\r\n"},
			{Name: "if a header line is malformed", Raw: "GET / HTTP/1.1\r\nbroken\r\n\r\n"},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				p := startPool(t, 1, registry(t, map[string]router.Handler{"/.*": hello()}))

				s := newFakeSocket(testCase.Raw)
				connect(p, 1, s)

				require.Eventually(t, s.isClosed, waitFor, tick)
				require.Empty(t, s.output())
			})
		}
	})

	t.Run("will drop the connection", func(t *testing.T) {
		t.Run("if the handler panics", func(t *testing.T) {
			boom := router.HandlerFunc(func(ctx context.Context, req *http1.Request, w *http1.ResponseWriter) {
				panic("boom")
			})
			p := startPool(t, 1, registry(t, map[string]router.Handler{
				"/boom":  boom,
				"/hello": hello(),
			}))

			bad := newFakeSocket("GET /boom HTTP/1.1\r\n\r\n")
			connect(p, 1, bad)
			good := newFakeSocket("GET /hello HTTP/1.1\r\n\r\n")
			connect(p, 2, good)

			assert.Eventually(t, bad.isClosed, waitFor, tick)
			assert.Eventually(t, func() bool {
				return strings.HasSuffix(good.output(), "hi")
			}, waitFor, tick)
			assert.False(t, good.isClosed())
		})

		t.Run("if writing the response fails", func(t *testing.T) {
			p := startPool(t, 1, registry(t, map[string]router.Handler{"/hello": hello()}))

			s := newFakeSocket("GET /hello HTTP/1.1\r\n\r\n")
			s.writeErr = errors.New("broken pipe")
			connect(p, 1, s)

			assert.Eventually(t, s.isClosed, waitFor, tick)
		})

		t.Run("if reading fails", func(t *testing.T) {
			p := startPool(t, 1, registry(t, map[string]router.Handler{"/hello": hello()}))

			s := newFakeSocket()
			s.readErr = errors.New("connection reset")
			connect(p, 1, s)

			assert.Eventually(t, s.isClosed, waitFor, tick)
		})
	})
}

func TestWorker_ErrorOrHangup(t *testing.T) {
	t.Run("will serve buffered requests before closing", func(t *testing.T) {
		p := startPool(t, 1, registry(t, map[string]router.Handler{"/hello": hello()}))

		s := newFakeSocket("GET /hello HTTP/1.1\r\n\r\n")
		p.Dispatch(NewConnection{ID: 1, Socket: s})
		p.Dispatch(ConnectionEvent{ID: 1, Readiness: ErrorOrHangup})

		require.Eventually(t, s.isClosed, waitFor, tick)
		assert.True(t, strings.HasSuffix(s.output(), "hi"))

		s.mu.Lock()
		defer s.mu.Unlock()
		assert.True(t, s.shutdown)
	})

	t.Run("will ignore events for unknown connections", func(t *testing.T) {
		p := startPool(t, 1, registry(t, map[string]router.Handler{"/hello": hello()}))

		p.Dispatch(ConnectionEvent{ID: 42, Readiness: ErrorOrHangup})
		p.Dispatch(ConnectionEvent{ID: 43, Readiness: Readable})

		s := newFakeSocket("GET /hello HTTP/1.1\r\n\r\n")
		connect(p, 1, s)

		assert.Eventually(t, func() bool {
			return strings.HasSuffix(s.output(), "hi")
		}, waitFor, tick)
	})

	t.Run("will ignore other readiness", func(t *testing.T) {
		p := startPool(t, 1, registry(t, map[string]router.Handler{"/hello": hello()}))

		s := newFakeSocket("GET /hello HTTP/1.1\r\n\r\n")
		p.Dispatch(NewConnection{ID: 1, Socket: s})
		p.Dispatch(ConnectionEvent{ID: 1, Readiness: Other})
		p.Dispatch(ConnectionEvent{ID: 1, Readiness: Readable})

		assert.Eventually(t, func() bool {
			return strings.HasSuffix(s.output(), "hi")
		}, waitFor, tick)
		assert.False(t, s.isClosed())
	})
}

func TestWorker_IdleTimeout(t *testing.T) {
	t.Run("will evict idle connections", func(t *testing.T) {
		p := startPool(
			t,
			1,
			registry(t, map[string]router.Handler{"/hello": hello()}),
			IdleTimeout(50*time.Millisecond),
			SweepInterval(10*time.Millisecond),
		)

		s := newFakeSocket()
		p.Dispatch(NewConnection{ID: 1, Socket: s})

		assert.Eventually(t, s.isClosed, waitFor, tick)
	})

	t.Run("will keep connections", func(t *testing.T) {
		t.Run("if eviction is disabled", func(t *testing.T) {
			p := startPool(
				t,
				1,
				registry(t, map[string]router.Handler{"/hello": hello()}),
				IdleTimeout(0),
				SweepInterval(10*time.Millisecond),
			)

			s := newFakeSocket()
			p.Dispatch(NewConnection{ID: 1, Socket: s})

			time.Sleep(100 * time.Millisecond)
			assert.False(t, s.isClosed())
		})

		t.Run("if they were active recently", func(t *testing.T) {
			slow := router.HandlerFunc(func(ctx context.Context, req *http1.Request, w *http1.ResponseWriter) {
				w.SetContentLength(2)
				w.Send()
				time.Sleep(300 * time.Millisecond)
				w.SendRaw([]byte("hi"))
			})
			p := startPool(
				t,
				1,
				registry(t, map[string]router.Handler{"/slow": slow, "/hello": hello()}),
				IdleTimeout(200*time.Millisecond),
				SweepInterval(10*time.Millisecond),
			)

			s := newFakeSocket("GET /slow HTTP/1.1\r\n\r\n")
			connect(p, 1, s)

			if !assert.Eventually(t, func() bool {
				return strings.HasSuffix(s.output(), "hi")
			}, waitFor, tick) {
				return
			}

			// well within the timeout measured from the end of the response
			time.Sleep(50 * time.Millisecond)
			if !assert.False(t, s.isClosed()) {
				return
			}

			s.feed("GET /hello HTTP/1.1\r\n\r\n")
			p.Dispatch(ConnectionEvent{ID: 1, Readiness: Readable})

			assert.Eventually(t, func() bool {
				return strings.Count(s.output(), "HTTP/1.1 200 OK") == 2
			}, waitFor, tick)
			assert.False(t, s.isClosed())
		})
	})
}

func TestPool_Run(t *testing.T) {
	t.Run("will close every connection", func(t *testing.T) {
		t.Run("once the context is cancelled", func(t *testing.T) {
			p := NewPool(2, registry(t, map[string]router.Handler{"/hello": hello()}))

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() {
				done <- p.Run(ctx)
			}()

			sockets := []*fakeSocket{newFakeSocket(), newFakeSocket(), newFakeSocket()}
			for i, s := range sockets {
				p.Dispatch(NewConnection{ID: ConnectionID(i + 1), Socket: s})
			}
			time.Sleep(20 * time.Millisecond)

			cancel()
			select {
			case err := <-done:
				if !assert.Nil(t, err) {
					return
				}
			case <-time.After(waitFor):
				t.Fatal("pool did not stop")
			}
			for _, s := range sockets {
				assert.True(t, s.isClosed())
			}
		})
	})

	t.Run("will route every event for a connection to its owner", func(t *testing.T) {
		var (
			mu     sync.Mutex
			served = map[string][]int{}
		)
		record := router.HandlerFunc(func(ctx context.Context, req *http1.Request, w *http1.ResponseWriter) {
			idx, ok := WorkerIndex(ctx)
			if !ok {
				idx = -1
			}
			mu.Lock()
			served[req.Query["id"]] = append(served[req.Query["id"]], idx)
			mu.Unlock()
		})

		const n = 3
		p := startPool(t, n, registry(t, map[string]router.Handler{"/.*": record}))

		sockets := make(map[ConnectionID]*fakeSocket)
		for id := ConnectionID(1); id <= 9; id++ {
			raw := "GET /?id=" + strconv.FormatUint(uint64(id), 10) + " HTTP/1.1\r\n\r\n"
			s := newFakeSocket(raw, raw)
			sockets[id] = s
			connect(p, id, s)
		}

		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			total := 0
			for _, idxs := range served {
				total += len(idxs)
			}
			return total == 18
		}, waitFor, tick)

		mu.Lock()
		defer mu.Unlock()
		for id := range sockets {
			for _, idx := range served[strconv.FormatUint(uint64(id), 10)] {
				assert.Equal(t, int(id%n), idx)
			}
		}
	})
}


func TestWorker_Telemetry(t *testing.T) {
	t.Run("will record request metrics", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		otel.SetMeterProvider(mp)

		p := startPool(t, 1, registry(t, map[string]router.Handler{"/hello": hello()}))

		s := newFakeSocket("GET /hello HTTP/1.1\r\n\r\n")
		connect(p, 1, s)
		bad := newFakeSocket("PUT / HTTP/1.1\r\n\r\n")
		connect(p, 2, bad)

		require.Eventually(t, func() bool {
			return strings.HasSuffix(s.output(), "hi") && bad.isClosed()
		}, waitFor, tick)

		// the request counter is incremented after the response is written
		require.Eventually(t, func() bool {
			var rm metricdata.ResourceMetrics
			if err := reader.Collect(context.Background(), &rm); err != nil {
				return false
			}
			sums := map[string]int64{}
			for _, sm := range rm.ScopeMetrics {
				for _, m := range sm.Metrics {
					sum, ok := m.Data.(metricdata.Sum[int64])
					if !ok {
						continue
					}
					for _, dp := range sum.DataPoints {
						sums[m.Name] += dp.Value
					}
				}
			}
			return sums["evhttp.requests"] == 1 &&
				sums["evhttp.parse.errors"] == 1 &&
				sums["evhttp.connections.opened"] == 2 &&
				sums["evhttp.connections.closed"] == 1
		}, waitFor, tick)
	})

	t.Run("will continue the caller trace", func(t *testing.T) {
		sr := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.TraceContext{})

		p := startPool(t, 1, registry(t, map[string]router.Handler{"/hello": hello()}))

		s := newFakeSocket("GET /hello HTTP/1.1\r\nTraceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01\r\n\r\n")
		connect(p, 1, s)

		require.Eventually(t, func() bool {
			return len(sr.Ended()) == 1
		}, waitFor, tick)

		span := sr.Ended()[0]
		assert.Equal(t, "Worker.serve", span.Name())
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.SpanContext().TraceID().String())
		assert.Equal(t, "00f067aa0ba902b7", span.Parent().SpanID().String())
	})
}
