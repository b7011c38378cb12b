package tempo

import (
	"math"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultBPM = 120
	MinBPM     = 40
	MaxBPM     = 240

	decimation    = 200 // keep every 200th sample
	peakThreshold = 0.3 // fraction of full scale
	maxPeaks      = 50
)

// Valid reports whether bpm is inside the supported range.
func Valid(bpm float64) bool {
	return bpm >= MinBPM && bpm <= MaxBPM
}

// Clamp forces bpm into [MinBPM, MaxBPM]. NaN becomes DefaultBPM.
func Clamp(bpm float64) float64 {
	switch {
	case math.IsNaN(bpm):
		return DefaultBPM
	case bpm < MinBPM:
		return MinBPM
	case bpm > MaxBPM:
		return MaxBPM
	}
	return bpm
}

// EstimateBPM guesses the tempo of mono samples in [-1, 1] by taking the most
// common spacing between amplitude peaks. It is a heuristic: any input it
// cannot make sense of yields DefaultBPM, and it never fails.
func EstimateBPM(samples []float32, sampleRate int) (bpm int) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("BPM estimation failed: %v", r)
			bpm = DefaultBPM
		}
	}()

	if sampleRate <= 0 {
		return DefaultBPM
	}

	env := make([]float64, 0, len(samples)/decimation+1)
	for i := 0; i < len(samples); i += decimation {
		env = append(env, math.Abs(float64(samples[i])))
	}

	var peaks []int
	for i := 1; i < len(env)-1; i++ {
		if env[i] > env[i-1] && env[i] > env[i+1] && env[i] > peakThreshold {
			peaks = append(peaks, i)
		}
	}
	if len(peaks) < 2 {
		return DefaultBPM
	}

	interval := modeInterval(peaks)
	if interval == 0 {
		return DefaultBPM
	}

	seconds := float64(interval*decimation) / float64(sampleRate)
	est := math.Round(60 / seconds)
	if math.IsNaN(est) || math.IsInf(est, 0) || est <= 0 {
		return DefaultBPM
	}

	// fold half-time and double-time detections into a dance tempo
	switch {
	case est < 60:
		return int(est * 2)
	case est > 200:
		return int(math.Round(est / 2))
	}
	return int(est)
}

// modeInterval returns the most frequent gap between consecutive peaks among
// the first maxPeaks peaks. Ties go to the gap that appeared first.
func modeInterval(peaks []int) int {
	n := min(len(peaks), maxPeaks)

	counts := make(map[int]int)
	var order []int
	for i := 1; i < n; i++ {
		gap := peaks[i] - peaks[i-1]
		if counts[gap] == 0 {
			order = append(order, gap)
		}
		counts[gap]++
	}

	best, bestCount := 0, 0
	for _, gap := range order {
		if counts[gap] > bestCount {
			best, bestCount = gap, counts[gap]
		}
	}
	return best
}
