// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"context"
	"errors"
	"os"
)

// Value is a configuration value which may or may not have been set.
type Value[T any] struct {
	v   T
	set bool
}

// ValueOf returns a set Value.
func ValueOf[T any](v T) Value[T] {
	return Value[T]{v: v, set: true}
}

// Value returns the underlying value and whether it was set.
func (v Value[T]) Value() (T, bool) {
	return v.v, v.set
}

// Reader is a source of a single configuration value.
type Reader[T any] interface {
	Read(context.Context) (Value[T], error)
}

// ReaderFunc is a func variant of the [Reader] interface.
type ReaderFunc[T any] func(context.Context) (Value[T], error)

// Read implements the [Reader] interface.
func (f ReaderFunc[T]) Read(ctx context.Context) (Value[T], error) {
	return f(ctx)
}

// ReaderOf returns a [Reader] which always returns v as a set value.
func ReaderOf[T any](v T) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		return ValueOf(v), nil
	})
}

// ErrValueNotSet is returned by [Read] when the [Reader] did not produce a value.
var ErrValueNotSet = errors.New("config: value not set")

// Read reads a value from r and converts an unset value into [ErrValueNotSet].
func Read[T any](ctx context.Context, r Reader[T]) (T, error) {
	var zero T
	val, err := r.Read(ctx)
	if err != nil {
		return zero, err
	}
	v, ok := val.Value()
	if !ok {
		return zero, ErrValueNotSet
	}
	return v, nil
}

// Must is the same as [Read] but panics on any error.
func Must[T any](ctx context.Context, r Reader[T]) T {
	v, err := Read(ctx, r)
	if err != nil {
		panic(err)
	}
	return v
}

// MustOr reads a value from r falling back to def when r is nil
// or r did not produce a value. It panics if r fails.
func MustOr[T any](ctx context.Context, def T, r Reader[T]) T {
	if r == nil {
		return def
	}
	return Must(ctx, Default(def, r))
}

// Default returns a [Reader] which returns def whenever r does not
// produce a value.
func Default[T any](def T, r Reader[T]) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		val, err := r.Read(ctx)
		if err != nil {
			return Value[T]{}, err
		}
		if _, ok := val.Value(); ok {
			return val, nil
		}
		return ValueOf(def), nil
	})
}

// Or returns the first set value produced by the given readers, in order.
func Or[T any](rs ...Reader[T]) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		for _, r := range rs {
			val, err := r.Read(ctx)
			if err != nil {
				return Value[T]{}, err
			}
			if _, ok := val.Value(); ok {
				return val, nil
			}
		}
		return Value[T]{}, nil
	})
}

// Map transforms a set value with f. Unset values stay unset.
func Map[T, U any](r Reader[T], f func(context.Context, T) (U, error)) Reader[U] {
	return ReaderFunc[U](func(ctx context.Context) (Value[U], error) {
		val, err := r.Read(ctx)
		if err != nil {
			return Value[U]{}, err
		}
		v, ok := val.Value()
		if !ok {
			return Value[U]{}, nil
		}
		u, err := f(ctx, v)
		if err != nil {
			return Value[U]{}, err
		}
		return ValueOf(u), nil
	})
}

// Bind chains a second [Reader] which depends on the value read by r.
func Bind[T, U any](r Reader[T], f func(context.Context, T) Reader[U]) Reader[U] {
	return ReaderFunc[U](func(ctx context.Context) (Value[U], error) {
		val, err := r.Read(ctx)
		if err != nil {
			return Value[U]{}, err
		}
		v, ok := val.Value()
		if !ok {
			return Value[U]{}, nil
		}
		return f(ctx, v).Read(ctx)
	})
}

// Env reads the environment variable name. An undefined variable is
// reported as unset, while a defined but empty one is set to "".
func Env(name string) Reader[string] {
	return ReaderFunc[string](func(ctx context.Context) (Value[string], error) {
		v, ok := os.LookupEnv(name)
		if !ok {
			return Value[string]{}, nil
		}
		return ValueOf(v), nil
	})
}
