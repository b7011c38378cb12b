package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpegPath is the ffmpeg binary used for formats without a native decoder
// and for resampling into the playback format.
var FFmpegPath = "ffmpeg"

// analysisRate is the sample rate ffmpeg resamples to for mono analysis.
const analysisRate = 22050

// ffmpegRaw decodes path to headerless PCM on stdout. format is an ffmpeg
// raw sample format such as s16le or f32le.
func ffmpegRaw(path, format string, rate, channels int) ([]byte, error) {
	cmd := exec.Command(FFmpegPath,
		"-v", "error",
		"-i", path,
		"-f", format,
		"-acodec", "pcm_"+format,
		"-ar", strconv.Itoa(rate),
		"-ac", strconv.Itoa(channels),
		"pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("ffmpeg decode %s: %w: %s", path, err, msg)
		}
		return nil, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}
	return out, nil
}

// DecodeFile decodes a track into the playback format: interleaved stereo
// int16 at SampleRate.
func DecodeFile(path string) ([]int16, error) {
	out, err := ffmpegRaw(path, "s16le", SampleRate, Channels)
	if err != nil {
		return nil, err
	}
	return BytesToSamples(out), nil
}

// decodeMonoFFmpeg decodes any ffmpeg-readable file to mono float32 at
// analysisRate.
func decodeMonoFFmpeg(path string) (*Buffer, error) {
	out, err := ffmpegRaw(path, "f32le", analysisRate, 1)
	if err != nil {
		return nil, err
	}

	n := len(out) / 4
	if n == 0 {
		return nil, fmt.Errorf("no audio data decoded from %s", path)
	}
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(out[i*4:]))
	}
	return &Buffer{Samples: samples, SampleRate: analysisRate}, nil
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// BytesToSamples reads little-endian int16 samples. A trailing odd byte is
// ignored.
func BytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}
