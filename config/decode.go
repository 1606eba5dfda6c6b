// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"context"

	"github.com/go-viper/mapstructure/v2"
)

// Decode maps the generic values produced by r onto a T. Struct fields
// are matched by their `config` tag. Strings are coerced into
// [time.Duration] and [encoding.TextUnmarshaler] fields.
func Decode[T any](r Reader[map[string]any]) Reader[T] {
	return Map(r, func(_ context.Context, m map[string]any) (T, error) {
		var v T
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName: "config",
			Result:  &v,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
		})
		if err != nil {
			return v, err
		}
		err = dec.Decode(m)
		return v, err
	})
}
