// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"strings"

	"github.com/z5labs/evhttp/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "evhttp",
		Short:         "A minimal event-driven HTTP/1.x server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCmd())
	return cmd
}

// newViper layers, from lowest to highest precedence, an optional YAML
// config file, EVHTTP_ prefixed environment variables and flags.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("EVHTTP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	err := v.BindPFlags(cmd.Flags())
	if err != nil {
		return nil, err
	}

	path := v.GetString("config")
	if path == "" {
		return v, nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	err = v.ReadInConfig()
	if err != nil {
		return nil, err
	}
	return v, nil
}

// fromViper is unset unless key was given by a flag, the environment
// or the config file, leaving defaults to whoever reads it.
func fromViper[T any](v *viper.Viper, key string, get func(string) T) config.Reader[T] {
	return config.ReaderFunc[T](func(ctx context.Context) (config.Value[T], error) {
		if !v.IsSet(key) {
			return config.Value[T]{}, nil
		}
		return config.ValueOf(get(key)), nil
	})
}
