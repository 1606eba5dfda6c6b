// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

//go:build linux

package reactor

import (
	"encoding/binary"
	"errors"

	"github.com/z5labs/evhttp/worker"

	"golang.org/x/sys/unix"
)

// poller is an epoll instance plus an eventfd used to interrupt a
// blocked wait from another goroutine.
type poller struct {
	epfd   int
	wakefd int
	events []unix.EpollEvent
}

func newPoller(batch int) (*poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, PollerError{Op: "create", Cause: err}
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, PollerError{Op: "create", Cause: err}
	}

	p := &poller{
		epfd:   epfd,
		wakefd: wakefd,
		events: make([]unix.EpollEvent, batch),
	}
	err = p.ctl(wakefd, wakeID, unix.EPOLLIN)
	if err != nil {
		p.close()
		return nil, PollerError{Op: "register", Cause: err}
	}
	return p, nil
}

// addListener registers the listening socket level triggered.
func (p *poller) addListener(fd int) error {
	return p.ctl(fd, listenerID, unix.EPOLLIN)
}

// add registers a connection edge triggered for read, error and hangup.
func (p *poller) add(fd int, id uint64) error {
	return p.ctl(fd, id, unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLET)
}

func (p *poller) ctl(fd int, id uint64, events uint32) error {
	ev := unix.EpollEvent{
		Events: events,
		Fd:     int32(uint32(id)),
		Pad:    int32(uint32(id >> 32)),
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

// wait blocks until at least one registered descriptor is ready.
func (p *poller) wait(buf []event) ([]event, error) {
	for {
		n, err := unix.EpollWait(p.epfd, p.events, -1)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return buf, err
		}

		buf = buf[:0]
		for _, ev := range p.events[:n] {
			buf = append(buf, event{
				id:        uint64(uint32(ev.Fd)) | uint64(uint32(ev.Pad))<<32,
				readiness: classify(ev.Events),
			})
		}
		return buf, nil
	}
}

func classify(events uint32) worker.Readiness {
	if events&(unix.EPOLLERR|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		return worker.ErrorOrHangup
	}
	if events&unix.EPOLLIN != 0 {
		return worker.Readable
	}
	return worker.Other
}

// wake interrupts a blocked wait. It is safe to call from any goroutine.
func (p *poller) wake() {
	var b [8]byte
	binary.NativeEndian.PutUint64(b[:], 1)
	unix.Write(p.wakefd, b[:])
}

func (p *poller) close() error {
	return errors.Join(unix.Close(p.wakefd), unix.Close(p.epfd))
}
