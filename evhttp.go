// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package evhttp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/z5labs/evhttp/internal/try"
	"github.com/z5labs/evhttp/lifecycle"
)

// Builder constructs a T.
type Builder[T any] interface {
	Build(context.Context) (T, error)
}

// BuilderFunc is a func variant of the [Builder] interface.
type BuilderFunc[T any] func(context.Context) (T, error)

// Build implements the [Builder] interface.
func (f BuilderFunc[T]) Build(ctx context.Context) (T, error) {
	return f(ctx)
}

// BuilderOf returns a [Builder] which always returns v.
func BuilderOf[T any](v T) Builder[T] {
	return BuilderFunc[T](func(ctx context.Context) (T, error) {
		return v, nil
	})
}

// Map transforms the value built by b with f.
func Map[A, B any](b Builder[A], f func(A) (B, error)) Builder[B] {
	return BuilderFunc[B](func(ctx context.Context) (B, error) {
		var zero B
		a, err := b.Build(ctx)
		if err != nil {
			return zero, err
		}
		v, err := f(a)
		if err != nil {
			return zero, err
		}
		return v, nil
	})
}

// Bind uses the value built by b to choose the next [Builder].
func Bind[A, B any](b Builder[A], f func(A) Builder[B]) Builder[B] {
	return BuilderFunc[B](func(ctx context.Context) (B, error) {
		var zero B
		a, err := b.Build(ctx)
		if err != nil {
			return zero, err
		}
		v, err := f(a).Build(ctx)
		if err != nil {
			return zero, err
		}
		return v, nil
	})
}

// MustBuild builds b and panics if it fails.
func MustBuild[T any](ctx context.Context, b Builder[T]) T {
	v, err := b.Build(ctx)
	if err != nil {
		panic(err)
	}
	return v
}

// MemoizeBuilder returns a [Builder] which calls b at most once. The
// first result, error included, is returned by every later Build.
func MemoizeBuilder[T any](b Builder[T]) Builder[T] {
	var (
		once sync.Once
		v    T
		err  error
	)
	return BuilderFunc[T](func(ctx context.Context) (T, error) {
		once.Do(func() {
			v, err = b.Build(ctx)
		})
		return v, err
	})
}

// Runtime runs until it's done or its context is cancelled.
type Runtime interface {
	Run(context.Context) error
}

// RuntimeFunc is a func variant of the [Runtime] interface.
type RuntimeFunc func(context.Context) error

// Run implements the [Runtime] interface.
func (f RuntimeFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Runner builds a [Runtime] and runs it.
type Runner[T Runtime] interface {
	Run(context.Context, Builder[T]) error
}

// RunnerFunc is a func variant of the [Runner] interface.
type RunnerFunc[T Runtime] func(context.Context, Builder[T]) error

// Run implements the [Runner] interface.
func (f RunnerFunc[T]) Run(ctx context.Context, b Builder[T]) error {
	return f(ctx, b)
}

// BuildError is returned by [DefaultRunner] when the [Builder] fails.
type BuildError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e BuildError) Error() string {
	return fmt.Sprintf("failed to build runtime: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e BuildError) Unwrap() error {
	return e.Cause
}

// RunError is returned by [DefaultRunner] when the built [Runtime] fails.
type RunError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e RunError) Error() string {
	return fmt.Sprintf("failed to run runtime: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e RunError) Unwrap() error {
	return e.Cause
}

// PostRunError wraps the failures of post-run hooks.
type PostRunError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e PostRunError) Error() string {
	return fmt.Sprintf("failed to run post-run hooks: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e PostRunError) Unwrap() error {
	return e.Cause
}

// DefaultRunner builds the [Runtime] with a [lifecycle.Context] in
// scope, runs it and then executes every registered post-run hook,
// regardless of whether the build or run failed.
func DefaultRunner[T Runtime]() Runner[T] {
	return RunnerFunc[T](func(ctx context.Context, b Builder[T]) error {
		lc := &lifecycle.Context{}
		ctx = lifecycle.NewContext(ctx, lc)

		err := buildAndRun(ctx, b)

		// hooks get a fresh context since ctx is usually already cancelled
		hookErr := lc.PostRun().Run(context.WithoutCancel(ctx))
		if hookErr != nil {
			return errors.Join(err, PostRunError{Cause: hookErr})
		}
		return err
	})
}

func buildAndRun[T Runtime](ctx context.Context, b Builder[T]) error {
	rt, err := b.Build(ctx)
	if err != nil {
		return BuildError{Cause: err}
	}

	err = rt.Run(ctx)
	if err != nil {
		return RunError{Cause: err}
	}
	return nil
}

// RecoverPanics converts a panic raised while building or running into
// an error returned from Run.
func RecoverPanics[T Runtime](r Runner[T]) Runner[T] {
	return RunnerFunc[T](func(ctx context.Context, b Builder[T]) (err error) {
		defer try.Recover(&err)

		return r.Run(ctx, b)
	})
}

// NotifyOnSignal cancels the context given to r once any of sigs is
// received. With no signals, r runs with ctx unchanged.
func NotifyOnSignal[T Runtime](r Runner[T], sigs ...os.Signal) Runner[T] {
	return RunnerFunc[T](func(ctx context.Context, b Builder[T]) error {
		if len(sigs) == 0 {
			return r.Run(ctx, b)
		}

		sigCtx, stop := signal.NotifyContext(ctx, sigs...)
		defer stop()

		return r.Run(sigCtx, b)
	})
}
