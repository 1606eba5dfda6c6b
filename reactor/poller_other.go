// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

//go:build !linux

package reactor

import "github.com/z5labs/evhttp/internal/socket"

type poller struct{}

func newPoller(batch int) (*poller, error) {
	return nil, PollerError{Op: "create", Cause: socket.ErrUnsupported}
}

func (p *poller) addListener(fd int) error { return socket.ErrUnsupported }

func (p *poller) add(fd int, id uint64) error { return socket.ErrUnsupported }

func (p *poller) wait(buf []event) ([]event, error) { return buf, socket.ErrUnsupported }

func (p *poller) wake() {}

func (p *poller) close() error { return nil }
