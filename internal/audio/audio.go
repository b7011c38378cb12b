package audio

import "time"

// Playback format of the rehearsal pipeline.
const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// TrackInfo identifies the track loaded into the pipeline.
type TrackInfo struct {
	ID            string
	PerformanceID string
	Path          string
	Name          string // display name, usually the uploaded file name
}

// Buffer is decoded mono audio used for analysis.
type Buffer struct {
	Samples    []float32 // mono, full scale is [-1, 1]
	SampleRate int
}

// Duration returns the length of the buffer in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}
