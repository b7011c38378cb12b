package audio

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	log "github.com/sirupsen/logrus"

	"github.com/satindergrewal/countsheet/internal/grid"
	"github.com/satindergrewal/countsheet/internal/tempo"
)

// Analysis is what the service needs to know about an uploaded track.
type Analysis struct {
	DurationSec float64 `json:"durationSec"`
	BPM         int     `json:"bpm"`
	SampleRate  int     `json:"sampleRate"`
	Measures    int     `json:"measures"`
	TotalCounts int     `json:"totalCounts"`
}

// DecodeMono decodes an audio file to mono samples. WAV and MP3 are decoded
// natively; other formats, and native failures, go through ffmpeg.
func DecodeMono(path string) (*Buffer, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".wav" || ext == ".wave" || ext == ".mp3" {
		buf, err := decodeNative(path, ext)
		if err == nil {
			return buf, nil
		}
		log.WithField("path", path).Warnf("native decode failed, trying ffmpeg: %v", err)
	}

	buf, err := decodeMonoFFmpeg(path)
	if err != nil {
		return nil, fault.Wrap(err,
			fmsg.WithDesc("decode audio", "The audio file could not be decoded."),
			ftag.With(ftag.InvalidArgument))
	}
	return buf, nil
}

func decodeNative(path, ext string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if ext == ".mp3" {
		return decodeMP3(f)
	}
	return decodeWAV(f)
}

// Analyze decodes a file and reports its duration and estimated tempo.
func Analyze(path string) (*Analysis, error) {
	buf, err := DecodeMono(path)
	if err != nil {
		return nil, err
	}
	return AnalyzeBuffer(buf), nil
}

// AnalyzeBuffer estimates tempo for already decoded audio.
func AnalyzeBuffer(buf *Buffer) *Analysis {
	a := &Analysis{
		DurationSec: buf.Duration(),
		BPM:         tempo.EstimateBPM(buf.Samples, buf.SampleRate),
		SampleRate:  buf.SampleRate,
	}
	if a.DurationSec > 0 {
		a.Measures, a.TotalCounts = grid.CountsFor(a.DurationSec, float64(a.BPM))
	}
	log.WithFields(log.Fields{
		"duration": grid.FormatDuration(a.DurationSec),
		"bpm":      a.BPM,
		"rate":     a.SampleRate,
	}).Info("analyzed track")
	return a
}
