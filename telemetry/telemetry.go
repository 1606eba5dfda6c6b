// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package telemetry

import (
	"context"
	"errors"

	"github.com/z5labs/evhttp"
	"github.com/z5labs/evhttp/config"
	"github.com/z5labs/evhttp/lifecycle"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// BuildResource describes the running service.
func BuildResource(serviceName, serviceVersion config.Reader[string]) evhttp.Builder[*resource.Resource] {
	return evhttp.BuilderFunc[*resource.Resource](func(ctx context.Context) (*resource.Resource, error) {
		return resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.MustOr(ctx, "evhttp", serviceName)),
			semconv.ServiceVersion(config.MustOr(ctx, "dev", serviceVersion)),
		), nil
	})
}

// Providers are the SDK providers of every signal.
type Providers struct {
	Tracer *sdktrace.TracerProvider
	Meter  *sdkmetric.MeterProvider
	Logger *sdklog.LoggerProvider
}

// BuildProviders wires exporters into batching SDK providers. Traces
// are sampled by trace id with the given ratio, defaulting to always.
func BuildProviders(
	res evhttp.Builder[*resource.Resource],
	exporters evhttp.Builder[Exporters],
	samplingRatio config.Reader[float64],
) evhttp.Builder[Providers] {
	return evhttp.BuilderFunc[Providers](func(ctx context.Context) (Providers, error) {
		r := evhttp.MustBuild(ctx, res)
		exp := evhttp.MustBuild(ctx, exporters)
		ratio := config.MustOr(ctx, 1.0, samplingRatio)

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithResource(r),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
			sdktrace.WithBatcher(exp.Span),
		)
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(r),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp.Metric)),
		)
		lp := sdklog.NewLoggerProvider(
			sdklog.WithResource(r),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(exp.Log)),
		)
		return Providers{Tracer: tp, Meter: mp, Logger: lp}, nil
	})
}

// Shutdown flushes and stops every provider.
func (p Providers) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.Tracer.Shutdown(ctx),
		p.Meter.Shutdown(ctx),
		p.Logger.Shutdown(ctx),
	)
}

// Runtime installs its providers globally and then runs the wrapped
// [evhttp.Runtime].
type Runtime[R evhttp.Runtime] struct {
	providers Providers
	runtime   R

	// set if no post-run hook will shut the providers down
	ownsShutdown bool
}

// BuildRuntime builds both the providers and the wrapped runtime.
// Providers are installed before the runtime is built so anything
// instrumented while building already reports to them. Shutting them
// down is registered as a post-run hook when a [lifecycle.Context] is
// available, otherwise [Runtime.Run] does it on return.
func BuildRuntime[R evhttp.Runtime](providers evhttp.Builder[Providers], runtime evhttp.Builder[R]) evhttp.Builder[Runtime[R]] {
	return evhttp.BuilderFunc[Runtime[R]](func(ctx context.Context) (Runtime[R], error) {
		p := evhttp.MustBuild(ctx, providers)
		install(p)

		registered := lifecycle.OnPostRun(ctx, lifecycle.HookFunc(p.Shutdown))

		rt, err := runtime.Build(ctx)
		if err != nil {
			if !registered {
				err = errors.Join(err, p.Shutdown(ctx))
			}
			return Runtime[R]{}, err
		}
		return Runtime[R]{providers: p, runtime: rt, ownsShutdown: !registered}, nil
	})
}

func install(p Providers) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	otel.SetTracerProvider(p.Tracer)
	otel.SetMeterProvider(p.Meter)
	global.SetLoggerProvider(p.Logger)
}

// Run implements the [evhttp.Runtime] interface.
func (r Runtime[R]) Run(ctx context.Context) (err error) {
	if r.ownsShutdown {
		defer func() {
			err = errors.Join(err, r.providers.Shutdown(context.WithoutCancel(ctx)))
		}()
	}
	return r.runtime.Run(ctx)
}
