package stream

import (
	"context"
	"sync"
)

// FrameBuffer is the per-listener queue for PCM frames: about three seconds
// of audio at 20ms per frame.
const FrameBuffer = 150

// Fanout delivers values from one source to N listeners. Slow listeners lose
// values rather than holding up the others.
type Fanout[T any] struct {
	bufSize int

	mu        sync.RWMutex
	listeners map[*Listener[T]]struct{}
}

// Listener receives values from a Fanout.
type Listener[T any] struct {
	C    chan T
	done chan struct{}
}

// Done is closed once the listener is unsubscribed.
func (l *Listener[T]) Done() <-chan struct{} {
	return l.done
}

// Broadcaster fans out PCM frames from the rehearsal pipeline.
type Broadcaster = Fanout[[]int16]

// NewBroadcaster creates a PCM frame broadcaster.
func NewBroadcaster() *Broadcaster {
	return NewFanout[[]int16](FrameBuffer)
}

// NewFanout creates a fan-out whose listeners buffer up to bufSize values.
func NewFanout[T any](bufSize int) *Fanout[T] {
	return &Fanout[T]{
		bufSize:   bufSize,
		listeners: make(map[*Listener[T]]struct{}),
	}
}

// Subscribe registers a new listener.
func (b *Fanout[T]) Subscribe() *Listener[T] {
	l := &Listener[T]{
		C:    make(chan T, b.bufSize),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop.
func (b *Fanout[T]) Unsubscribe(l *Listener[T]) {
	b.mu.Lock()
	_, ok := b.listeners[l]
	delete(b.listeners, l)
	b.mu.Unlock()
	if ok {
		close(l.done)
	}
}

// ListenerCount returns the number of active listeners.
func (b *Fanout[T]) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Publish hands v to every listener without blocking.
func (b *Fanout[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for l := range b.listeners {
		select {
		case l.C <- v:
		default:
			// listener too slow, drop to keep the rest moving
		}
	}
}

// Run publishes everything read from source until ctx is cancelled or
// source is closed.
func (b *Fanout[T]) Run(ctx context.Context, source <-chan T) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-source:
			if !ok {
				return
			}
			b.Publish(v)
		}
	}
}
