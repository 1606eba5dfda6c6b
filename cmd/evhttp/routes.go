// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/z5labs/evhttp/config"
	"github.com/z5labs/evhttp/router"
	"github.com/z5labs/evhttp/static"

	"github.com/spf13/viper"
)

type routeFile struct {
	Routes []route `config:"routes"`
}

// route binds a pattern to exactly one of a file, a directory or a
// builtin handler.
type route struct {
	Pattern string `config:"pattern"`
	File    string `config:"file"`
	Root    string `config:"root"`
	Handler string `config:"handler"`
}

// RouteError occurs when a route does not name exactly one target.
type RouteError struct {
	Pattern string
	Reason  string
}

// Error implements the [builtin.error] interface.
func (e RouteError) Error() string {
	return fmt.Sprintf("invalid route %q: %s", e.Pattern, e.Reason)
}

func defaultRoutes(v *viper.Viper) []route {
	return []route{
		{Pattern: "/health", Handler: "health"},
		{Pattern: "/long", Handler: "long"},
		{Pattern: "/", File: v.GetString("index")},
		{Pattern: "/.*", Root: v.GetString("root")},
	}
}

func loadRoutes(ctx context.Context, v *viper.Viper) ([]route, error) {
	path := v.GetString("routes")
	if path == "" {
		return defaultRoutes(v), nil
	}

	rf, err := config.Read(ctx, config.Bind(
		config.ReaderOf(path),
		func(_ context.Context, path string) config.Reader[routeFile] {
			return config.Decode[routeFile](config.Yaml(config.ReadFile(path)))
		},
	))
	if errors.Is(err, config.ErrValueNotSet) {
		return nil, fmt.Errorf("route file not found: %s", path)
	}
	if err != nil {
		return nil, err
	}
	if len(rf.Routes) == 0 {
		return nil, fmt.Errorf("route file has no routes: %s", path)
	}
	return rf.Routes, nil
}

type mux interface {
	Handle(pattern string, h router.Handler) error
}

func registerRoutes(m mux, routes []route, healthHandler router.Handler, logHandler slog.Handler) error {
	for _, r := range routes {
		h, err := r.handler(healthHandler, logHandler)
		if err != nil {
			return err
		}
		err = m.Handle(r.Pattern, h)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r route) handler(healthHandler router.Handler, logHandler slog.Handler) (router.Handler, error) {
	targets := 0
	for _, s := range []string{r.File, r.Root, r.Handler} {
		if s != "" {
			targets++
		}
	}
	if targets != 1 {
		return nil, RouteError{Pattern: r.Pattern, Reason: "expected exactly one of file, root or handler"}
	}

	switch {
	case r.File != "":
		return static.FileHandler(r.File, static.LogHandler(logHandler)), nil
	case r.Root != "":
		return static.FileSystemHandler(r.Root, static.LogHandler(logHandler)), nil
	}

	switch r.Handler {
	case "health":
		return healthHandler, nil
	case "long":
		return longHandler{chunks: 10000, interval: 100 * time.Millisecond}, nil
	default:
		return nil, RouteError{Pattern: r.Pattern, Reason: fmt.Sprintf("unknown handler %q", r.Handler)}
	}
}
