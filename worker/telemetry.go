// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package worker

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
)

const instrumentationName = "worker"

type instruments struct {
	connsOpened metric.Int64Counter
	connsClosed metric.Int64Counter
	requests    metric.Int64Counter
	parseErrors metric.Int64Counter
	duration    metric.Float64Histogram
}

func newInstruments() instruments {
	meter := otel.Meter(instrumentationName)

	// instrument creation only fails for invalid names, in which case
	// the returned no-op instrument is still safe to use
	connsOpened, _ := meter.Int64Counter(
		"evhttp.connections.opened",
		metric.WithDescription("Connections accepted by a worker."),
		metric.WithUnit("{connection}"),
	)
	connsClosed, _ := meter.Int64Counter(
		"evhttp.connections.closed",
		metric.WithDescription("Connections closed by a worker."),
		metric.WithUnit("{connection}"),
	)
	requests, _ := meter.Int64Counter(
		"evhttp.requests",
		metric.WithDescription("Requests served."),
		metric.WithUnit("{request}"),
	)
	parseErrors, _ := meter.Int64Counter(
		"evhttp.parse.errors",
		metric.WithDescription("Connections dropped because of malformed input."),
		metric.WithUnit("{error}"),
	)
	duration, _ := meter.Float64Histogram(
		"evhttp.request.duration",
		metric.WithDescription("Time spent serving a request."),
		metric.WithUnit("s"),
	)

	return instruments{
		connsOpened: connsOpened,
		connsClosed: connsClosed,
		requests:    requests,
		parseErrors: parseErrors,
		duration:    duration,
	}
}

func workerAttr(index int) metric.MeasurementOption {
	return metric.WithAttributes(attribute.Int("worker", index))
}

// headerCarrier adapts request headers to a [propagation.TextMapCarrier].
// Header keys keep the case they were received with, so lookups fall
// back to a case insensitive match.
type headerCarrier map[string]string

var _ propagation.TextMapCarrier = headerCarrier(nil)

func (c headerCarrier) Get(key string) string {
	if v, ok := c[key]; ok {
		return v
	}
	for k, v := range c {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	c[key] = value
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

type workerIndexKey struct{}

// WorkerIndex returns the index of the worker serving the request
// carried by ctx.
func WorkerIndex(ctx context.Context) (int, bool) {
	i, ok := ctx.Value(workerIndexKey{}).(int)
	return i, ok
}
