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
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/z5labs/evhttp"
	"github.com/z5labs/evhttp/config"
	"github.com/z5labs/evhttp/health"
	"github.com/z5labs/evhttp/http1"
	"github.com/z5labs/evhttp/telemetry"
	"github.com/z5labs/evhttp/telemetry/httpclient"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve HTTP until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), v, cmd.ErrOrStderr())
		},
	}

	fs := cmd.Flags()
	fs.String("config", "", "YAML config file")
	fs.String("addr", evhttp.DefaultAddr, "address to listen on")
	fs.Int("workers", evhttp.DefaultWorkers, "number of workers")
	fs.String("root", "http", "directory served for unmatched paths")
	fs.String("index", "http/index.html", "file served for /")
	fs.String("routes", "", "YAML route file replacing the default routes")
	fs.Duration("idle-timeout", 120*time.Second, "close connections idle for longer, 0 disables")
	fs.Duration("write-timeout", 10*time.Second, "drop connections which block a response write for longer")
	fs.Int("max-buffer-bytes", http1.DefaultMaxBufferBytes, "per connection limit on unparsed bytes, 0 disables")
	fs.Bool("strict-crlf", false, "reject lines terminated by a bare LF")
	fs.String("log-format", "json", "log format: json, text or zap")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.Bool("log-mask-query", true, "mask query parameter values in logged request targets")
	fs.String("otel", "none", "telemetry exporter: none, stdout, otlp or otlp-http")
	fs.String("otel-endpoint", "", "collector host:port, defaults to $OTEL_EXPORTER_OTLP_ENDPOINT, then localhost:4317 for otlp and localhost:4318 for otlp-http")
	fs.Float64("otel-sampling-ratio", 1, "fraction of traces sampled, defaults to $OTEL_TRACES_SAMPLER_ARG, then 1")
	fs.String("service-version", "dev", "reported as service.version")
	return cmd
}

func serve(ctx context.Context, v *viper.Viper, stderr io.Writer) error {
	logHandler, err := newLogHandler(v, stderr)
	if err != nil {
		return err
	}

	serverB := buildServer(v, logHandler)

	runtimeB, err := buildRuntime(v, logHandler, serverB)
	if err != nil {
		return err
	}

	runner := evhttp.NotifyOnSignal(
		evhttp.RecoverPanics(evhttp.DefaultRunner[evhttp.Runtime]()),
		os.Interrupt,
		syscall.SIGTERM,
	)
	err = runner.Run(ctx, runtimeB)
	if err != nil {
		slog.New(logHandler).ErrorContext(ctx, "server stopped", slog.Any("error", err))
	}
	return err
}

func buildServer(v *viper.Viper, logHandler slog.Handler) evhttp.Builder[*evhttp.Server] {
	return evhttp.BuilderFunc[*evhttp.Server](func(ctx context.Context) (*evhttp.Server, error) {
		srv := evhttp.NewServer(
			evhttp.Addr(fromViper(v, "addr", v.GetString)),
			evhttp.Workers(fromViper(v, "workers", v.GetInt)),
			evhttp.IdleTimeout(fromViper(v, "idle-timeout", v.GetDuration)),
			evhttp.WriteTimeout(fromViper(v, "write-timeout", v.GetDuration)),
			evhttp.MaxBufferBytes(fromViper(v, "max-buffer-bytes", v.GetInt)),
			evhttp.StrictCRLF(fromViper(v, "strict-crlf", v.GetBool)),
			evhttp.LogHandler(logHandler),
		)

		routes, err := loadRoutes(ctx, v)
		if err != nil {
			return nil, err
		}
		err = registerRoutes(srv, routes, health.Handler(srv), logHandler)
		if err != nil {
			return nil, err
		}
		return srv, nil
	})
}

func buildRuntime(v *viper.Viper, logHandler slog.Handler, serverB evhttp.Builder[*evhttp.Server]) (evhttp.Builder[evhttp.Runtime], error) {
	var exporters evhttp.Builder[telemetry.Exporters]
	switch mode := v.GetString("otel"); mode {
	case "none", "":
		return evhttp.Map(serverB, func(srv *evhttp.Server) (evhttp.Runtime, error) {
			return srv, nil
		}), nil
	case "stdout":
		exporters = telemetry.BuildStdoutExporters(config.ReaderOf[io.Writer](os.Stdout))
	case "otlp":
		exporters = telemetry.BuildOTLPGrpcExporters(
			config.Default("localhost:4317", otelEndpoint(v)),
		)
	case "otlp-http":
		exporters = telemetry.BuildOTLPHttpExporters(
			config.Default("localhost:4318", otelEndpoint(v)),
			evhttp.BuilderFunc[*http.Client](func(ctx context.Context) (*http.Client, error) {
				return httpclient.New(
					httpclient.Name("otlp"),
					httpclient.Timeout(10*time.Second),
					httpclient.Retry(3, 100*time.Millisecond, 2*time.Second),
					httpclient.TripAfter(5),
					httpclient.LogHandler(logHandler),
				), nil
			}),
		)
	default:
		return nil, fmt.Errorf("unknown otel exporter: %q", mode)
	}

	providers := telemetry.BuildProviders(
		telemetry.BuildResource(
			config.Env("OTEL_SERVICE_NAME"),
			fromViper(v, "service-version", v.GetString),
		),
		exporters,
		config.Or(
			fromViper(v, "otel-sampling-ratio", v.GetFloat64),
			config.Float64FromString(config.Env("OTEL_TRACES_SAMPLER_ARG")),
		),
	)
	rt := telemetry.BuildRuntime(providers, serverB)
	return evhttp.Map(rt, func(rt telemetry.Runtime[*evhttp.Server]) (evhttp.Runtime, error) {
		return rt, nil
	}), nil
}

// otelEndpoint prefers the flag over the standard OTLP environment
// variable.
func otelEndpoint(v *viper.Viper) config.Reader[string] {
	return config.Or(
		fromViper(v, "otel-endpoint", v.GetString),
		config.Env("OTEL_EXPORTER_OTLP_ENDPOINT"),
	)
}
