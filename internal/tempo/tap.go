package tempo

import (
	"math"
	"sync"
	"time"
)

const maxTaps = 4

// TapTempo turns a series of taps into a BPM reading, averaging the
// intervals between the most recent taps.
type TapTempo struct {
	mu   sync.Mutex
	taps []time.Time
}

// Tap records a tap at t. Once two or more taps are held it returns the
// rounded BPM and true.
func (tt *TapTempo) Tap(t time.Time) (int, bool) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	tt.taps = append(tt.taps, t)
	if len(tt.taps) > maxTaps {
		tt.taps = tt.taps[len(tt.taps)-maxTaps:]
	}
	if len(tt.taps) < 2 {
		return 0, false
	}

	span := tt.taps[len(tt.taps)-1].Sub(tt.taps[0])
	avgMs := float64(span.Milliseconds()) / float64(len(tt.taps)-1)
	if avgMs <= 0 {
		return 0, false
	}
	return int(math.Round(60000 / avgMs)), true
}

// Count returns the number of taps currently held.
func (tt *TapTempo) Count() int {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return len(tt.taps)
}

// Reset forgets all taps.
func (tt *TapTempo) Reset() {
	tt.mu.Lock()
	tt.taps = nil
	tt.mu.Unlock()
}
