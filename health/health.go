// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package health composes health signals and exposes them over HTTP.
package health

import (
	"context"
	"sync/atomic"
)

// Metric is anything which can report whether it is healthy.
type Metric interface {
	Healthy(context.Context) bool
}

// MetricFunc adapts a func into a [Metric].
type MetricFunc func(context.Context) bool

// Healthy implements the [Metric] interface.
func (f MetricFunc) Healthy(ctx context.Context) bool {
	return f(ctx)
}

// Binary is a [Metric] which is either healthy or not.
// The zero value is healthy.
type Binary struct {
	unhealthy atomic.Bool
}

// Toggle flips the current state.
func (m *Binary) Toggle() {
	for {
		cur := m.unhealthy.Load()
		if m.unhealthy.CompareAndSwap(cur, !cur) {
			return
		}
	}
}

// Set sets the current state.
func (m *Binary) Set(healthy bool) {
	m.unhealthy.Store(!healthy)
}

// Healthy implements the [Metric] interface.
func (m *Binary) Healthy(ctx context.Context) bool {
	return !m.unhealthy.Load()
}

// AndMetric is healthy only if every underlying [Metric] is.
type AndMetric []Metric

// And joins metrics with the logical and (&&) operator.
// An empty AndMetric is healthy.
func And(metrics ...Metric) AndMetric {
	return AndMetric(metrics)
}

// Healthy implements the [Metric] interface.
func (m AndMetric) Healthy(ctx context.Context) bool {
	for _, metric := range m {
		if !metric.Healthy(ctx) {
			return false
		}
	}
	return true
}

// OrMetric is healthy if any underlying [Metric] is.
type OrMetric []Metric

// Or joins metrics with the logical or (||) operator.
// An empty OrMetric is unhealthy.
func Or(metrics ...Metric) OrMetric {
	return OrMetric(metrics)
}

// Healthy implements the [Metric] interface.
func (m OrMetric) Healthy(ctx context.Context) bool {
	for _, metric := range m {
		if metric.Healthy(ctx) {
			return true
		}
	}
	return false
}

// NotMetric negates its underlying [Metric].
type NotMetric struct {
	metric Metric
}

// Not negates metric with the logical not (!) operator.
func Not(metric Metric) NotMetric {
	return NotMetric{metric: metric}
}

// Healthy implements the [Metric] interface.
func (m NotMetric) Healthy(ctx context.Context) bool {
	return !m.metric.Healthy(ctx)
}
