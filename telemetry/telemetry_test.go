// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package telemetry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/z5labs/evhttp"
	"github.com/z5labs/evhttp/config"
	"github.com/z5labs/evhttp/lifecycle"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func stdoutProviders(w io.Writer) evhttp.Builder[Providers] {
	return BuildProviders(
		BuildResource(config.ReaderOf("telemetry-test"), nil),
		BuildStdoutExporters(config.ReaderOf(w)),
		nil,
	)
}

func traced(name string) evhttp.Builder[evhttp.RuntimeFunc] {
	return evhttp.BuilderOf(evhttp.RuntimeFunc(func(ctx context.Context) error {
		_, span := otel.Tracer("telemetry_test").Start(ctx, name)
		span.End()
		return nil
	}))
}

func TestBuildResource(t *testing.T) {
	t.Run("will fall back to default service attributes", func(t *testing.T) {
		res, err := BuildResource(nil, nil).Build(context.Background())
		if !assert.Nil(t, err) {
			return
		}

		set := res.Set()
		name, ok := set.Value(semconv.ServiceNameKey)
		if !assert.True(t, ok) {
			return
		}
		assert.Equal(t, attribute.StringValue("evhttp"), name)

		version, ok := set.Value(semconv.ServiceVersionKey)
		if !assert.True(t, ok) {
			return
		}
		assert.Equal(t, attribute.StringValue("dev"), version)
	})
}

func TestBuildRuntime(t *testing.T) {
	t.Run("will export spans", func(t *testing.T) {
		t.Run("once the post-run hooks ran", func(t *testing.T) {
			var out syncBuffer
			b := BuildRuntime(stdoutProviders(&out), traced("with-lifecycle"))

			err := evhttp.DefaultRunner[Runtime[evhttp.RuntimeFunc]]().Run(context.Background(), b)
			if !assert.Nil(t, err) {
				return
			}

			assert.Contains(t, out.String(), "with-lifecycle")
			assert.Contains(t, out.String(), "telemetry-test")
		})

		t.Run("if there is no lifecycle context", func(t *testing.T) {
			var out syncBuffer
			b := BuildRuntime(stdoutProviders(&out), traced("without-lifecycle"))

			rt, err := b.Build(context.Background())
			if !assert.Nil(t, err) {
				return
			}

			err = rt.Run(context.Background())
			if !assert.Nil(t, err) {
				return
			}

			assert.Contains(t, out.String(), "without-lifecycle")
		})
	})

	t.Run("will install the w3c propagators", func(t *testing.T) {
		b := BuildRuntime(
			BuildProviders(BuildResource(nil, nil), BuildNoopExporters(), nil),
			traced("noop"),
		)

		rt, err := b.Build(context.Background())
		if !assert.Nil(t, err) {
			return
		}

		fields := otel.GetTextMapPropagator().Fields()
		assert.Contains(t, fields, "traceparent")
		assert.Contains(t, fields, "baggage")
		assert.Nil(t, rt.Run(context.Background()))
	})

	t.Run("will register shutdown as a post-run hook", func(t *testing.T) {
		lc := &lifecycle.Context{}
		ctx := lifecycle.NewContext(context.Background(), lc)

		var out syncBuffer
		rt, err := BuildRuntime(stdoutProviders(&out), traced("hooked")).Build(ctx)
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Nil(t, rt.Run(ctx)) {
			return
		}

		err = lc.PostRun().Run(context.Background())
		if !assert.Nil(t, err) {
			return
		}
		assert.Contains(t, out.String(), "hooked")
	})

	t.Run("will return the runtime build error", func(t *testing.T) {
		buildErr := errors.New("failed to build")
		b := BuildRuntime(
			BuildProviders(BuildResource(nil, nil), BuildNoopExporters(), nil),
			evhttp.BuilderFunc[evhttp.RuntimeFunc](func(ctx context.Context) (evhttp.RuntimeFunc, error) {
				return nil, buildErr
			}),
		)

		_, err := b.Build(context.Background())

		assert.ErrorIs(t, err, buildErr)
	})
}

func TestProviders_Shutdown(t *testing.T) {
	t.Run("will succeed with noop exporters", func(t *testing.T) {
		p, err := BuildProviders(BuildResource(nil, nil), BuildNoopExporters(), config.ReaderOf(0.5)).Build(context.Background())
		if !assert.Nil(t, err) {
			return
		}

		assert.Nil(t, p.Shutdown(context.Background()))
	})
}
