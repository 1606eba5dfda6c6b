// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"context"
	"strconv"
)

// IntFromString parses the string value with [strconv.Atoi].
func IntFromString(r Reader[string]) Reader[int] {
	return Map(r, func(_ context.Context, s string) (int, error) {
		return strconv.Atoi(s)
	})
}

// Float64FromString parses the string value as a float64, e.g. a
// trace sampling ratio taken from the environment.
func Float64FromString(r Reader[string]) Reader[float64] {
	return Map(r, func(_ context.Context, s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}
