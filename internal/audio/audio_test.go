package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// --- Constants ---

func TestConstants(t *testing.T) {
	// 48kHz * 20ms = 960 samples per channel
	if got := SampleRate * int(FrameDuration/time.Millisecond) / 1000; got != FrameSize {
		t.Errorf("FrameSize mismatch: want %d, got %d", got, FrameSize)
	}
	if FrameSamples != FrameSize*Channels {
		t.Errorf("FrameSamples = %d, want %d", FrameSamples, FrameSize*Channels)
	}
	if FrameBytes != FrameSamples*2 {
		t.Errorf("FrameBytes = %d, want %d", FrameBytes, FrameSamples*2)
	}
}

func TestBufferDuration(t *testing.T) {
	b := &Buffer{Samples: make([]float32, 22050*3), SampleRate: 22050}
	if got := b.Duration(); got != 3 {
		t.Errorf("Duration = %v, want 3", got)
	}
	var nilBuf *Buffer
	if got := nilBuf.Duration(); got != 0 {
		t.Errorf("nil Duration = %v, want 0", got)
	}
	if got := (&Buffer{Samples: make([]float32, 10)}).Duration(); got != 0 {
		t.Errorf("zero-rate Duration = %v, want 0", got)
	}
}

// --- Smoothstep / fades ---

func TestSmoothstepBoundaries(t *testing.T) {
	tests := []struct {
		input float64
		want  float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{1.5, 1},
	}
	for _, tt := range tests {
		got := Smoothstep(tt.input)
		if got != tt.want {
			t.Errorf("Smoothstep(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSmoothstepMonotonic(t *testing.T) {
	prev := 0.0
	for i := 1; i <= 100; i++ {
		x := float64(i) / 100.0
		val := Smoothstep(x)
		if val < prev {
			t.Errorf("Smoothstep not monotonic: f(%v)=%v < f(%v)=%v", x, val, float64(i-1)/100.0, prev)
		}
		prev = val
	}
}

func TestFadeFrame(t *testing.T) {
	in := []int16{1000, -1000, 32767, -32768}

	silent := FadeFrame(in, 0)
	for i, v := range silent {
		if v != 0 {
			t.Errorf("progress=0 sample[%d] = %d, want 0", i, v)
		}
	}

	full := FadeFrame(in, 1)
	for i, v := range full {
		if v != in[i] {
			t.Errorf("progress=1 sample[%d] = %d, want %d", i, v, in[i])
		}
	}

	half := FadeFrame(in, 0.5)
	if half[0] != 500 || half[1] != -500 {
		t.Errorf("progress=0.5 = %v, want [500 -500 ...]", half[:2])
	}
	if in[0] != 1000 {
		t.Error("FadeFrame modified its input")
	}
}

// --- SamplesToBytes ---

func TestSamplesToBytes(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 256}
	buf := SamplesToBytes(samples)
	if len(buf) != len(samples)*2 {
		t.Fatalf("SamplesToBytes length = %d, want %d", len(buf), len(samples)*2)
	}

	// 256 = 0x0100 -> bytes [0x00, 0x01]
	idx := 5 * 2
	if buf[idx] != 0x00 || buf[idx+1] != 0x01 {
		t.Errorf("Sample 256 encoded as [%02x, %02x], want [00, 01]", buf[idx], buf[idx+1])
	}

	back := BytesToSamples(append(buf, 0x7f))
	if len(back) != len(samples) {
		t.Fatalf("BytesToSamples length = %d, want %d (odd byte dropped)", len(back), len(samples))
	}
	for i := range samples {
		if back[i] != samples[i] {
			t.Errorf("sample %d = %d, want %d", i, back[i], samples[i])
		}
	}
}

// --- WAV decoding and analysis ---

// writeClickWAV writes a 16-bit mono WAV with a loud click every period samples.
func writeClickWAV(t *testing.T, rate, seconds, period int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clicks.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	data := make([]int, rate*seconds)
	for i := 1000; i < len(data); i += period {
		data[i] = 30000
	}

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
	return path
}

func TestDecodeMonoWAV(t *testing.T) {
	path := writeClickWAV(t, 48000, 4, 24000)

	buf, err := DecodeMono(path)
	if err != nil {
		t.Fatalf("DecodeMono: %v", err)
	}
	if buf.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want 48000", buf.SampleRate)
	}
	if got := buf.Duration(); got != 4 {
		t.Errorf("Duration = %v, want 4", got)
	}
	if v := buf.Samples[1000]; v < 0.9 || v > 0.92 {
		t.Errorf("click sample = %v, want ~0.915", v)
	}
}

func TestAnalyzeWAV(t *testing.T) {
	// 100 BPM at 48kHz: one click every 0.6s
	path := writeClickWAV(t, 48000, 32, 28800)

	a, err := Analyze(path)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if a.BPM != 100 {
		t.Errorf("BPM = %d, want 100", a.BPM)
	}
	if a.DurationSec != 32 {
		t.Errorf("DurationSec = %v, want 32", a.DurationSec)
	}
	if a.Measures != 7 || a.TotalCounts != 56 {
		t.Errorf("Measures/TotalCounts = %d/%d, want 7/56", a.Measures, a.TotalCounts)
	}
}

// --- Pipeline ---

func TestNewPipeline(t *testing.T) {
	p := NewPipeline(time.Second)
	if p == nil {
		t.Fatal("NewPipeline returned nil")
	}
	if p.FadeDuration() != time.Second {
		t.Errorf("FadeDuration = %v, want 1s", p.FadeDuration())
	}
	track, pos, dur := p.Status()
	if track.ID != "" || pos != 0 || dur != 0 || p.Playing() {
		t.Errorf("Initial status should be zero-valued, got track=%v pos=%v dur=%v", track, pos, dur)
	}
}

func TestPipelineStopNonBlocking(t *testing.T) {
	p := NewPipeline(0)
	p.Stop()
	p.Stop()
}

func TestPipelinePlaysFromStartSec(t *testing.T) {
	p := NewPipeline(0)
	const frames = 60
	p.decode = func(string) ([]int16, error) {
		samples := make([]int16, frames*FrameSamples)
		for i := range samples {
			samples[i] = int16(i / FrameSamples) // frame number in every sample
		}
		return samples, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	// 1s = 50 frames in, so 10 frames remain
	p.Load(TrackInfo{ID: "t1", Path: "x.wav", Name: "demo"}, 1)

	var got []int16
	timeout := time.After(3 * time.Second)
	for len(got) < 10 {
		select {
		case f := <-p.Frames():
			got = append(got, f[0])
		case <-timeout:
			t.Fatalf("timed out after %d frames", len(got))
		}
	}
	if got[0] != 50 || got[9] != 59 {
		t.Errorf("frames = %v, want 50..59", got)
	}

	deadline := time.Now().Add(time.Second)
	for p.Playing() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if p.Playing() {
		t.Error("pipeline still playing after the track ended")
	}
	if track, _, dur := p.Status(); track.ID != "t1" || dur != frames*FrameDuration {
		t.Errorf("Status = %v / %v, want t1 / %v", track.ID, dur, frames*FrameDuration)
	}
}

func TestPipelineStopFadesOut(t *testing.T) {
	p := NewPipeline(100 * time.Millisecond) // 5 frames
	p.decode = func(string) ([]int16, error) {
		samples := make([]int16, 500*FrameSamples)
		for i := range samples {
			samples[i] = 10000
		}
		return samples, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	p.Load(TrackInfo{ID: "t1", Path: "x.wav"}, 0)

	// drain until fully faded in
	timeout := time.After(3 * time.Second)
	for received := 0; received < 8; received++ {
		select {
		case <-p.Frames():
		case <-timeout:
			t.Fatal("timed out waiting for frames")
		}
	}

	p.Stop()

	var tail []int16
	for {
		select {
		case f := <-p.Frames():
			tail = append(tail, f[0])
			continue
		case <-time.After(300 * time.Millisecond):
		}
		break
	}
	if p.Playing() {
		t.Error("still playing after Stop")
	}
	if len(tail) == 0 || tail[len(tail)-1] != 0 {
		t.Errorf("last frame after stop = %v, want a faded-out 0", tail)
	}
}

func TestPipelineStopCancelsPendingLoad(t *testing.T) {
	p := NewPipeline(0)
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	p.decode = func(path string) ([]int16, error) {
		if path == "slow.wav" {
			started <- struct{}{}
			<-release
		}
		return make([]int16, 50*FrameSamples), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Load(TrackInfo{ID: "t1", Path: "slow.wav"}, 0)
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("decode never started")
	}
	p.Stop()
	close(release)

	select {
	case <-p.Frames():
		t.Fatal("frame played after Stop")
	case <-time.After(200 * time.Millisecond):
	}
	if p.Playing() {
		t.Error("playing after Stop during decode")
	}

	// the next load still plays
	p.Load(TrackInfo{ID: "t2", Path: "fast.wav"}, 0)
	select {
	case <-p.Frames():
	case <-time.After(time.Second):
		t.Fatal("load after a cancelled load did not play")
	}
	if track, _, _ := p.Status(); track.ID != "t2" {
		t.Errorf("Status track = %q, want t2", track.ID)
	}
}
