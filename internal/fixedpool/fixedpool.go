// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package fixedpool runs a fixed set of long lived tasks, e.g. the reactor
// loop and the worker pool, as one unit.
package fixedpool

import (
	"context"
	"errors"
	"sync"

	"github.com/z5labs/evhttp/internal/try"
)

// Task is a unit of work which should run until its context is cancelled.
type Task func(context.Context) error

// Wait runs every task on its own goroutine and blocks until all of them
// return. The first task to fail, by error or panic, cancels the context
// shared by the remaining tasks. All failures are joined together.
func Wait(ctx context.Context, tasks ...Task) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup
	errCh := make(chan error, len(tasks))

	for _, task := range tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()

			err := run(ctx, t)
			if err == nil {
				return
			}
			errCh <- err
			cancel(err)
		}(task)
	}

	wg.Wait()
	close(errCh)

	var jerr error
	for err := range errCh {
		jerr = errors.Join(jerr, err)
	}
	return jerr
}

func run(ctx context.Context, t Task) (err error) {
	defer try.Recover(&err)
	return t(ctx)
}
