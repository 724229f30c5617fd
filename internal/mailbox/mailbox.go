package mailbox

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Send once the receiving side has been closed.
var ErrClosed = errors.New("mailbox closed")

// Mailbox is an unbounded FIFO queue with a channel receive side.
// Send never blocks; a pump goroutine hands items to Recv in order.
type Mailbox[T any] struct {
	mu     sync.Mutex
	queue  []T
	closed bool

	notify chan struct{}
	done   chan struct{}
	out    chan T
}

func New[T any]() *Mailbox[T] {
	m := &Mailbox[T]{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan T),
	}
	go m.pump()
	return m
}

// Send enqueues v. It returns ErrClosed when the mailbox no longer has a receiver.
func (m *Mailbox[T]) Send(v T) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.queue = append(m.queue, v)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

// Recv returns the receive side. It is closed after Close.
func (m *Mailbox[T]) Recv() <-chan T {
	return m.out
}

// Len reports the number of items waiting to be handed out.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close drops pending items and stops the pump. Safe to call more than once.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.queue = nil
	m.mu.Unlock()
	close(m.done)
}

func (m *Mailbox[T]) pump() {
	defer close(m.out)
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		if len(m.queue) == 0 {
			m.mu.Unlock()
			select {
			case <-m.notify:
			case <-m.done:
				return
			}
			continue
		}
		var zero T
		item := m.queue[0]
		m.queue[0] = zero
		m.queue = m.queue[1:]
		m.mu.Unlock()

		select {
		case m.out <- item:
		case <-m.done:
			return
		}
	}
}
