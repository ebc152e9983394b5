package pcm

import (
	"fmt"
	"io"
	"sync"
)

// Ring is a thread-safe sliding-window ring buffer for playback and
// capture plumbing. When full it overwrites the oldest elements instead
// of blocking the writer: a live call must keep the most recent audio,
// a slow consumer just loses the stalest window.
//
// Read blocks until elements are available, the write side is closed
// (drain then io.EOF), or the ring is closed with an error.
type Ring[T any] struct {
	mu         sync.Mutex
	cond       *sync.Cond
	buf        []T
	head, tail int64
	closeWrite bool
	closeErr   error
}

// NewRing creates a ring holding at most size elements.
func NewRing[T any](size int) *Ring[T] {
	r := &Ring[T]{buf: make([]T, size)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Len returns the number of buffered elements.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.tail - r.head)
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Write appends elements, overwriting the oldest when full. It never
// blocks and always accepts the whole slice unless the ring is closed.
func (r *Ring[T]) Write(p []T) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closeErr != nil {
		return 0, fmt.Errorf("pcm: write to closed ring: %w", r.closeErr)
	}
	if r.closeWrite {
		return 0, fmt.Errorf("pcm: write to closed ring: %w", io.ErrClosedPipe)
	}

	// A write larger than the ring only keeps its newest window.
	src := p
	if len(src) > len(r.buf) {
		src = src[len(src)-len(r.buf):]
	}

	for _, s := range src {
		r.buf[r.tail%int64(len(r.buf))] = s
		r.tail++
	}
	if r.tail-r.head > int64(len(r.buf)) {
		r.head = r.tail - int64(len(r.buf))
	}
	r.cond.Broadcast()
	return len(p), nil
}

// Read fills p with buffered elements, blocking while the ring is empty.
func (r *Ring[T]) Read(p []T) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.head == r.tail {
		if r.closeErr != nil {
			return 0, fmt.Errorf("pcm: read from closed ring: %w", r.closeErr)
		}
		if r.closeWrite {
			return 0, io.EOF
		}
		r.cond.Wait()
	}
	if r.closeErr != nil {
		return 0, fmt.Errorf("pcm: read from closed ring: %w", r.closeErr)
	}

	n := 0
	for n < len(p) && r.head < r.tail {
		p[n] = r.buf[r.head%int64(len(r.buf))]
		r.head++
		n++
	}
	return n, nil
}

// Discard drops up to n of the oldest buffered elements.
func (r *Ring[T]) Discard(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int64(n) > r.tail-r.head {
		r.head = r.tail
		return
	}
	r.head += int64(n)
}

// CloseWrite stops accepting writes; readers drain the remaining
// elements and then get io.EOF.
func (r *Ring[T]) CloseWrite() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeWrite = true
	r.cond.Broadcast()
	return nil
}

// CloseWithError closes the ring; blocked and future operations fail
// with the given error.
func (r *Ring[T]) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closeErr == nil {
		r.closeErr = err
		r.closeWrite = true
		r.cond.Broadcast()
	}
	return nil
}

// Close closes the ring. Equivalent to CloseWithError(io.ErrClosedPipe).
func (r *Ring[T]) Close() error { return r.CloseWithError(io.ErrClosedPipe) }
