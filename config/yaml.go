// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"context"
	"fmt"
	"io"

	"github.com/z5labs/evhttp/internal/try"
	"gopkg.in/yaml.v3"
)

// InvalidYamlError occurs if the underlying io.Reader contains invalid YAML.
type InvalidYamlError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e InvalidYamlError) Error() string {
	return fmt.Sprintf("invalid yaml: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidYamlError) Unwrap() error {
	return e.Cause
}

// Yaml parses the YAML document produced by r into a generic map.
// If the source also implements [io.Closer] it is closed once read.
//
//	routes := config.Yaml(config.ReadFile("routes.yaml"))
func Yaml[R io.Reader](r Reader[R]) Reader[map[string]any] {
	return Map(r, func(_ context.Context, src R) (m map[string]any, err error) {
		defer try.Close(&err, src)

		b, err := io.ReadAll(src)
		if err != nil {
			return nil, err
		}

		m = make(map[string]any)
		err = yaml.Unmarshal(b, &m)
		if err != nil {
			return nil, InvalidYamlError{Cause: err}
		}
		return m, nil
	})
}
