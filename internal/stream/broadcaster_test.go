package stream

import (
	"context"
	"sync"
	"testing"
	"time"
)

func recv[T any](t *testing.T, l *Listener[T]) T {
	t.Helper()
	select {
	case v := <-l.C:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a value")
	}
	var zero T
	return zero
}

func TestListenerCount(t *testing.T) {
	b := NewBroadcaster()
	if b.ListenerCount() != 0 {
		t.Fatalf("new broadcaster has %d listeners", b.ListenerCount())
	}

	var ls []*Listener[[]int16]
	for i := 1; i <= 3; i++ {
		ls = append(ls, b.Subscribe())
		if got := b.ListenerCount(); got != i {
			t.Errorf("after %d subscribes: %d listeners", i, got)
		}
	}
	for i, l := range ls {
		b.Unsubscribe(l)
		if got, want := b.ListenerCount(), len(ls)-i-1; got != want {
			t.Errorf("after %d unsubscribes: %d listeners, want %d", i+1, got, want)
		}
	}
}

func TestUnsubscribeClosesDoneOnce(t *testing.T) {
	b := NewFanout[[]byte](1)
	l := b.Subscribe()

	select {
	case <-l.Done():
		t.Fatal("done closed before unsubscribe")
	default:
	}

	b.Unsubscribe(l)
	b.Unsubscribe(l) // must not panic on a second close

	select {
	case <-l.Done():
	default:
		t.Fatal("done not closed after unsubscribe")
	}
}

func TestRunFansOutToEveryListener(t *testing.T) {
	tests := []struct {
		name      string
		listeners int
		values    int
	}{
		{"single listener", 1, 5},
		{"several listeners", 4, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBroadcaster()
			ls := make([]*Listener[[]int16], tt.listeners)
			for i := range ls {
				ls[i] = b.Subscribe()
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			source := make(chan []int16)
			go b.Run(ctx, source)

			for v := 0; v < tt.values; v++ {
				source <- []int16{int16(v), int16(-v)}
			}
			for i, l := range ls {
				for v := 0; v < tt.values; v++ {
					got := recv(t, l)
					if got[0] != int16(v) {
						t.Errorf("listener %d value %d = %v", i, v, got)
					}
				}
			}
		})
	}
}

func TestPublishDropsForFullListener(t *testing.T) {
	b := NewFanout[[]byte](2)
	slow := b.Subscribe()
	fast := b.Subscribe()

	var wg sync.WaitGroup
	received := 0
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 5 {
			select {
			case <-fast.C:
				received++
			case <-time.After(time.Second):
				return
			}
		}
	}()

	for i := range 5 {
		b.Publish([]byte{byte(i)})
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	if received != 5 {
		t.Errorf("fast listener got %d values, want 5", received)
	}
	if len(slow.C) != 2 {
		t.Errorf("slow listener holds %d values, want its buffer of 2", len(slow.C))
	}
	// the oldest values are kept, later ones dropped
	if first := <-slow.C; first[0] != 0 {
		t.Errorf("slow listener first value = %d, want 0", first[0])
	}
}

func TestRunStops(t *testing.T) {
	t.Run("context cancelled", func(t *testing.T) {
		b := NewFanout[[]byte](1)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			b.Run(ctx, make(chan []byte))
			close(done)
		}()
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Run did not return after cancel")
		}
	})

	t.Run("source closed", func(t *testing.T) {
		b := NewFanout[[]byte](1)
		source := make(chan []byte)
		done := make(chan struct{})
		go func() {
			b.Run(context.Background(), source)
			close(done)
		}()
		close(source)
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Run did not return after the source closed")
		}
	})
}

func TestCueFanoutCarriesJSON(t *testing.T) {
	cues := NewFanout[[]byte](4)
	l := cues.Subscribe()
	defer cues.Unsubscribe(l)

	msg := []byte(`{"index":8,"text":"Hit"}`)
	cues.Publish(msg)
	if got := recv(t, l); string(got) != string(msg) {
		t.Errorf("cue = %s, want %s", got, msg)
	}
}
