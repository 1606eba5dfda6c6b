// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package worker

import "sync"

// mailbox is an unbounded FIFO queue. Sending never blocks so the
// reactor can never be stalled by a slow worker.
type mailbox struct {
	mu     sync.Mutex
	msgs   []Message
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		notify: make(chan struct{}, 1),
	}
}

func (m *mailbox) push(msg Message) {
	m.mu.Lock()
	m.msgs = append(m.msgs, msg)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// take returns every queued message in arrival order and hands buf
// over to be reused as the next queue.
func (m *mailbox) take(buf []Message) []Message {
	clear(buf)

	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.msgs
	m.msgs = buf[:0]
	return msgs
}
