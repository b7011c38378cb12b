package stream

import (
	"context"
	"io"
	"net/http"
	"os/exec"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/satindergrewal/countsheet/internal/audio"
)

// DefaultBitrate is the MP3 bitrate of the rehearsal stream.
const DefaultBitrate = "192k"

// HTTPHandler serves the rehearsal audio as a chunked MP3 stream. Every
// connection gets its own ffmpeg encoder fed from a broadcaster listener.
type HTTPHandler struct {
	broadcaster *Broadcaster
	bitrate     string
}

// NewHTTPHandler creates an HTTP stream handler encoding at DefaultBitrate.
func NewHTTPHandler(b *Broadcaster) *HTTPHandler {
	return &HTTPHandler{broadcaster: b, bitrate: DefaultBitrate}
}

// mp3Encoder is a running ffmpeg process turning PCM on stdin into MP3.
type mp3Encoder struct {
	cmd *exec.Cmd
	in  io.WriteCloser
	out io.ReadCloser
}

func startEncoder(ctx context.Context, bitrate string) (*mp3Encoder, error) {
	cmd := exec.CommandContext(ctx, audio.FFmpegPath,
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", bitrate,
		"-f", "mp3",
		"-fflags", "nobuffer",
		"-flush_packets", "1",
		"pipe:1",
	)
	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &mp3Encoder{cmd: cmd, in: in, out: out}, nil
}

// feed writes frames from l into the encoder until the listener or ctx ends.
func (e *mp3Encoder) feed(ctx context.Context, l *Listener[[]int16]) {
	defer e.in.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.Done():
			return
		case frame, ok := <-l.C:
			if !ok {
				return
			}
			if _, err := e.in.Write(audio.SamplesToBytes(frame)); err != nil {
				return
			}
		}
	}
}

// flushWriter flushes after every write so MP3 frames leave immediately.
type flushWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	fw.f.Flush()
	return n, err
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	enc, err := startEncoder(ctx, h.bitrate)
	if err != nil {
		log.WithError(err).Warn("HTTP stream: ffmpeg unavailable")
		http.Error(w, "stream unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("ICY-Name", "countsheet rehearsal")

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	entry := log.WithField("remote", r.RemoteAddr)
	entry.Infof("HTTP listener connected (total: %d)", h.broadcaster.ListenerCount())
	defer entry.Info("HTTP listener disconnected")

	go enc.feed(ctx, listener)

	buf := make([]byte, 4096)
	if _, err := io.CopyBuffer(flushWriter{w: w, f: flusher}, enc.out, buf); err != nil && ctx.Err() == nil {
		entry.WithError(err).Debug("HTTP stream ended")
	}

	cancel()
	enc.cmd.Wait()
}
