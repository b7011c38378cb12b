package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// decodeWAV reads a PCM WAV stream and mixes it down to mono.
func decodeWAV(r io.ReadSeeker) (*Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read WAV PCM: %w", err)
	}
	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		return nil, errors.New("unknown WAV bit depth")
	}
	return mixdown(buf, math.Pow(2, float64(bitDepth-1))), nil
}

// mixdown averages interleaved channels into normalized mono samples.
func mixdown(buf *goaudio.IntBuffer, fullScale float64) *Buffer {
	ch := buf.Format.NumChannels
	if ch <= 0 {
		ch = 1
	}
	frames := len(buf.Data) / ch
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < ch; c++ {
			sum += float64(buf.Data[i*ch+c])
		}
		mono[i] = float32(sum / float64(ch) / fullScale)
	}
	return &Buffer{Samples: mono, SampleRate: buf.Format.SampleRate}
}

// decodeMP3 decodes an MP3 stream. go-mp3 always produces 16-bit stereo.
func decodeMP3(r io.Reader) (*Buffer, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("open MP3: %w", err)
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("read MP3 PCM: %w", err)
	}

	frames := len(pcm) / 4
	if frames == 0 {
		return nil, errors.New("no audio data in MP3")
	}
	mono := make([]float32, frames)
	for i := range mono {
		l := int16(binary.LittleEndian.Uint16(pcm[i*4:]))
		r := int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))
		mono[i] = float32((float64(l) + float64(r)) / 2 / 32768)
	}
	return &Buffer{Samples: mono, SampleRate: dec.SampleRate()}, nil
}
