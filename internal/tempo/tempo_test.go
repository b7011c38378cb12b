package tempo

import (
	"math"
	"testing"
	"time"
)

const testRate = 48000

// clickTrack returns seconds of silence with a full-scale click every period
// samples, starting at sample 1000.
func clickTrack(seconds float64, period int) []float32 {
	buf := make([]float32, int(seconds*testRate))
	for i := 1000; i < len(buf); i += period {
		buf[i] = 0.9
	}
	return buf
}

func TestEstimateBPMClickTracks(t *testing.T) {
	tests := []struct {
		name   string
		period int // samples between clicks at 48kHz
		want   int
	}{
		{"120 bpm", 24000, 120},
		{"100 bpm", 28800, 100},
		{"150 bpm", 19200, 150},
		{"half time 50 folds to 100", 57600, 100},
		{"double time 300 folds to 150", 9600, 150},
	}
	for _, tt := range tests {
		got := EstimateBPM(clickTrack(30, tt.period), testRate)
		if got != tt.want {
			t.Errorf("%s: EstimateBPM = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestEstimateBPMFallbacks(t *testing.T) {
	oneClick := make([]float32, testRate*5)
	oneClick[2000] = 1

	quiet := clickTrack(10, 24000)
	for i := range quiet {
		quiet[i] *= 0.2 // below the peak threshold
	}

	tests := []struct {
		name    string
		samples []float32
		rate    int
	}{
		{"nil", nil, testRate},
		{"silence", make([]float32, testRate*3), testRate},
		{"single peak", oneClick, testRate},
		{"below threshold", quiet, testRate},
		{"zero sample rate", clickTrack(10, 24000), 0},
		{"negative sample rate", clickTrack(10, 24000), -44100},
	}
	for _, tt := range tests {
		if got := EstimateBPM(tt.samples, tt.rate); got != DefaultBPM {
			t.Errorf("%s: EstimateBPM = %d, want %d", tt.name, got, DefaultBPM)
		}
	}
}

func TestEstimateBPMNegativePolarity(t *testing.T) {
	buf := clickTrack(20, 24000)
	for i := range buf {
		buf[i] = -buf[i]
	}
	if got := EstimateBPM(buf, testRate); got != 120 {
		t.Errorf("EstimateBPM(inverted) = %d, want 120", got)
	}
}

func TestModeIntervalTieTakesFirst(t *testing.T) {
	// gaps: 10, 20, 10, 20
	peaks := []int{0, 10, 30, 40, 60}
	if got := modeInterval(peaks); got != 10 {
		t.Errorf("modeInterval = %d, want 10", got)
	}
}

func TestModeIntervalOnlyFirstFiftyPeaks(t *testing.T) {
	var peaks []int
	pos := 0
	for i := 0; i < 50; i++ {
		peaks = append(peaks, pos)
		pos += 7
	}
	// a long tail with a different spacing must be ignored
	for i := 0; i < 200; i++ {
		pos += 3
		peaks = append(peaks, pos)
	}
	if got := modeInterval(peaks); got != 7 {
		t.Errorf("modeInterval = %d, want 7", got)
	}
}

func TestClampAndValid(t *testing.T) {
	tests := []struct {
		in    float64
		want  float64
		valid bool
	}{
		{20, MinBPM, false},
		{40, 40, true},
		{128.5, 128.5, true},
		{240, 240, true},
		{300, MaxBPM, false},
		{math.NaN(), DefaultBPM, false},
	}
	for _, tt := range tests {
		if got := Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%v) = %v, want %v", tt.in, got, tt.want)
		}
		if got := Valid(tt.in); got != tt.valid {
			t.Errorf("Valid(%v) = %v, want %v", tt.in, got, tt.valid)
		}
	}
}

// --- TapTempo ---

func TestTapTempo(t *testing.T) {
	var tt TapTempo
	start := time.Unix(0, 0)

	if _, ok := tt.Tap(start); ok {
		t.Fatal("single tap should not produce a BPM")
	}
	bpm, ok := tt.Tap(start.Add(500 * time.Millisecond))
	if !ok || bpm != 120 {
		t.Errorf("two taps 500ms apart = (%d, %v), want (120, true)", bpm, ok)
	}
}

func TestTapTempoKeepsLastFour(t *testing.T) {
	var tt TapTempo
	at := time.Unix(0, 0)
	// slow taps first, then four at 100 BPM
	for i := 0; i < 3; i++ {
		tt.Tap(at)
		at = at.Add(2 * time.Second)
	}
	var bpm int
	for i := 0; i < 4; i++ {
		bpm, _ = tt.Tap(at)
		at = at.Add(600 * time.Millisecond)
	}
	if bpm != 100 {
		t.Errorf("bpm = %d, want 100", bpm)
	}
	if tt.Count() != 4 {
		t.Errorf("Count = %d, want 4", tt.Count())
	}

	tt.Reset()
	if tt.Count() != 0 {
		t.Errorf("Count after Reset = %d, want 0", tt.Count())
	}
}
