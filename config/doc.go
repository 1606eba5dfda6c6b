// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config reads the settings evhttp is started with.
//
// A [Reader] produces a [Value] which is either set or unset. Keeping
// the two apart lets a zero value, like an idle timeout of 0, be told
// apart from a timeout nobody configured. Readers compose: [Or] falls
// through to the next reader, [Default] fills in an unset value, [Map]
// and [Bind] derive new readers from old ones.
//
// The worker count, for example, comes from the environment and falls
// back to a fixed default:
//
//	workers := config.Default(4, config.IntFromString(config.Env("EVHTTP_WORKERS")))
//
// A route table can be decoded straight out of a YAML file:
//
//	routes := config.Decode[RouteFile](config.Yaml(config.ReadFile("routes.yaml")))
//
// [Read] reports an unset value as [ErrValueNotSet].
package config
