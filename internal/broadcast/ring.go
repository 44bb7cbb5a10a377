// ABOUTME: Bounded multi-subscriber broadcast ring
// ABOUTME: Senders never block; receivers that fall behind are told how much they missed
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned once a closed ring has been drained
var ErrClosed = errors.New("broadcast closed")

// LaggedError reports messages overwritten before the receiver read them.
// The receiver continues from the oldest message still retained.
type LaggedError struct {
	Skipped uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("receiver lagged by %d messages", e.Skipped)
}

// Ring is a fixed capacity broadcast channel
type Ring[T any] struct {
	mu     sync.Mutex
	buf    []T
	next   uint64 // sequence number of the next message sent
	notify chan struct{}
	closed bool

	receivers atomic.Int64
}

// New creates a ring retaining up to capacity messages
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		buf:    make([]T, capacity),
		notify: make(chan struct{}),
	}
}

// Send publishes v to all receivers, overwriting the oldest message when full.
// Returns the number of receivers subscribed at the time of the send.
func (r *Ring[T]) Send(v T) int {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0
	}
	r.buf[r.next%uint64(len(r.buf))] = v
	r.next++
	wake := r.notify
	r.notify = make(chan struct{})
	r.mu.Unlock()

	close(wake)
	return int(r.receivers.Load())
}

// Subscribe returns a receiver that sees messages sent from now on
func (r *Ring[T]) Subscribe() *Receiver[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receivers.Add(1)
	return &Receiver[T]{ring: r, next: r.next}
}

// Len returns the number of messages currently retained
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next < uint64(len(r.buf)) {
		return int(r.next)
	}
	return len(r.buf)
}

// Receivers returns the number of active receivers
func (r *Ring[T]) Receivers() int {
	return int(r.receivers.Load())
}

// Close stops the ring. Receivers drain what is retained and then get ErrClosed.
func (r *Ring[T]) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	wake := r.notify
	r.mu.Unlock()

	close(wake)
}

// Receiver is one subscriber's read cursor. Not safe for concurrent use.
type Receiver[T any] struct {
	ring     *Ring[T]
	next     uint64
	detached atomic.Bool
}

// Recv blocks until a message is available, the ring closes or ctx is done
func (rc *Receiver[T]) Recv(ctx context.Context) (T, error) {
	for {
		v, wait, err := rc.poll()
		if wait == nil {
			return v, err
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-wait:
		}
	}
}

// TryRecv returns immediately; ok is false when nothing is pending
func (rc *Receiver[T]) TryRecv() (v T, ok bool, err error) {
	v, wait, err := rc.poll()
	if wait != nil {
		return v, false, nil
	}
	return v, err == nil, err
}

// poll returns a message or error, or a channel to wait on when empty
func (rc *Receiver[T]) poll() (T, <-chan struct{}, error) {
	var zero T
	r := rc.ring

	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := uint64(len(r.buf))
	if r.next > capacity && rc.next < r.next-capacity {
		oldest := r.next - capacity
		skipped := oldest - rc.next
		rc.next = oldest
		return zero, nil, &LaggedError{Skipped: skipped}
	}

	if rc.next < r.next {
		v := r.buf[rc.next%capacity]
		rc.next++
		return v, nil, nil
	}

	if r.closed {
		return zero, nil, ErrClosed
	}
	return zero, r.notify, nil
}

// Close detaches the receiver from the ring
func (rc *Receiver[T]) Close() {
	if rc.detached.CompareAndSwap(false, true) {
		rc.ring.receivers.Add(-1)
	}
}
