// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package worker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMailbox(t *testing.T) {
	t.Run("will return messages in the order they were pushed", func(t *testing.T) {
		m := newMailbox()
		m.push(NewConnection{ID: 1})
		m.push(ConnectionEvent{ID: 1, Readiness: Readable})
		m.push(ConnectionEvent{ID: 1, Readiness: ErrorOrHangup})

		msgs := m.take(nil)
		if !assert.Len(t, msgs, 3) {
			return
		}
		assert.IsType(t, NewConnection{}, msgs[0])
		assert.Equal(t, ConnectionEvent{ID: 1, Readiness: Readable}, msgs[1])
		assert.Equal(t, ConnectionEvent{ID: 1, Readiness: ErrorOrHangup}, msgs[2])
		assert.Empty(t, m.take(msgs))
	})

	t.Run("will not block", func(t *testing.T) {
		t.Run("if nobody is receiving", func(t *testing.T) {
			m := newMailbox()
			for i := range 1000 {
				m.push(ConnectionEvent{ID: ConnectionID(i)})
			}
			assert.Len(t, m.take(nil), 1000)
		})
	})

	t.Run("will keep a single pending notification", func(t *testing.T) {
		m := newMailbox()
		m.push(NewConnection{ID: 1})
		m.push(NewConnection{ID: 2})

		<-m.notify
		select {
		case <-m.notify:
			t.Fatal("expected at most one pending notification")
		default:
		}
	})

	t.Run("will not lose messages pushed concurrently", func(t *testing.T) {
		m := newMailbox()

		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range 100 {
					m.push(ConnectionEvent{ID: ConnectionID(i*100 + j)})
				}
			}()
		}
		wg.Wait()

		assert.Len(t, m.take(nil), 800)
	})
}

func TestReadiness_String(t *testing.T) {
	assert.Equal(t, "readable", Readable.String())
	assert.Equal(t, "error_or_hangup", ErrorOrHangup.String())
	assert.Equal(t, "other", Other.String())
}
