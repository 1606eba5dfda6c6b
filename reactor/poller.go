// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package reactor

import "github.com/z5labs/evhttp/worker"

const (
	// listenerID tags readiness of the listening socket.
	listenerID uint64 = 0

	// wakeID tags readiness of the poller's own wake up descriptor.
	wakeID = ^uint64(0)
)

type event struct {
	id        uint64
	readiness worker.Readiness
}
