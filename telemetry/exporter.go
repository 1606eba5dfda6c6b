// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package telemetry

import (
	"context"
	"io"
	"net/http"

	"github.com/z5labs/evhttp"
	"github.com/z5labs/evhttp/config"
	"github.com/z5labs/evhttp/lifecycle"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Exporters holds one exporter per signal.
type Exporters struct {
	Span   sdktrace.SpanExporter
	Metric sdkmetric.Exporter
	Log    sdklog.Exporter
}

// BuildNoopExporters returns exporters which drop everything.
func BuildNoopExporters() evhttp.Builder[Exporters] {
	return evhttp.BuilderOf(Exporters{
		Span:   noopSpanExporter{},
		Metric: noopMetricExporter{},
		Log:    noopLogExporter{},
	})
}

// BuildStdoutExporters returns exporters which pretty print to w.
func BuildStdoutExporters(w config.Reader[io.Writer]) evhttp.Builder[Exporters] {
	return evhttp.BuilderFunc[Exporters](func(ctx context.Context) (Exporters, error) {
		out := config.Must(ctx, w)

		span, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
		if err != nil {
			return Exporters{}, err
		}
		metric, err := stdoutmetric.New(stdoutmetric.WithWriter(out), stdoutmetric.WithPrettyPrint())
		if err != nil {
			return Exporters{}, err
		}
		log, err := stdoutlog.New(stdoutlog.WithWriter(out), stdoutlog.WithPrettyPrint())
		if err != nil {
			return Exporters{}, err
		}
		return Exporters{Span: span, Metric: metric, Log: log}, nil
	})
}

// BuildOTLPGrpcExporters returns exporters which share a single gRPC
// connection to the collector at target. The connection is closed by a
// post-run hook.
func BuildOTLPGrpcExporters(target config.Reader[string]) evhttp.Builder[Exporters] {
	return evhttp.BuilderFunc[Exporters](func(ctx context.Context) (Exporters, error) {
		conn, err := grpc.NewClient(
			config.Must(ctx, target),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		if err != nil {
			return Exporters{}, err
		}
		lifecycle.OnPostRun(ctx, lifecycle.HookFunc(func(ctx context.Context) error {
			return conn.Close()
		}))

		span, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return Exporters{}, err
		}
		metric, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
		if err != nil {
			return Exporters{}, err
		}
		log, err := otlploggrpc.New(ctx, otlploggrpc.WithGRPCConn(conn))
		if err != nil {
			return Exporters{}, err
		}
		return Exporters{Span: span, Metric: metric, Log: log}, nil
	})
}

// BuildOTLPHttpExporters returns exporters which push to the collector
// at endpoint, given as host:port, without TLS.
func BuildOTLPHttpExporters(endpoint config.Reader[string], client evhttp.Builder[*http.Client]) evhttp.Builder[Exporters] {
	return evhttp.BuilderFunc[Exporters](func(ctx context.Context) (Exporters, error) {
		ep := config.Must(ctx, endpoint)
		hc := evhttp.MustBuild(ctx, client)

		span, err := otlptracehttp.New(
			ctx,
			otlptracehttp.WithEndpoint(ep),
			otlptracehttp.WithInsecure(),
			otlptracehttp.WithHTTPClient(hc),
		)
		if err != nil {
			return Exporters{}, err
		}
		metric, err := otlpmetrichttp.New(
			ctx,
			otlpmetrichttp.WithEndpoint(ep),
			otlpmetrichttp.WithInsecure(),
			otlpmetrichttp.WithHTTPClient(hc),
		)
		if err != nil {
			return Exporters{}, err
		}
		log, err := otlploghttp.New(
			ctx,
			otlploghttp.WithEndpoint(ep),
			otlploghttp.WithInsecure(),
			otlploghttp.WithHTTPClient(hc),
		)
		if err != nil {
			return Exporters{}, err
		}
		return Exporters{Span: span, Metric: metric, Log: log}, nil
	})
}
