package audio

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var errStopped = errors.New("playback stopped")

type loadRequest struct {
	info     TrackInfo
	startSec float64
	gen      uint64
}

type decodedTrack struct {
	info       TrackInfo
	samples    []int16
	startFrame int
	gen        uint64
}

// Pipeline decodes a track and outputs PCM frames at real-time rate, fading
// in when playback starts and out when it is stopped.
type Pipeline struct {
	loadCh  chan loadRequest
	frameCh chan []int16
	stopCh  chan struct{}
	fadeDur time.Duration
	decode  func(path string) ([]int16, error)

	mu            sync.RWMutex
	gen           uint64 // bumped by every Stop; loads from an older gen never play
	currentTrack  TrackInfo
	playing       bool
	trackPosition time.Duration
	trackDuration time.Duration
}

// NewPipeline creates an audio pipeline with the given fade duration.
func NewPipeline(fadeDuration time.Duration) *Pipeline {
	return &Pipeline{
		loadCh:  make(chan loadRequest, 1),
		frameCh: make(chan []int16, 100),
		stopCh:  make(chan struct{}, 1),
		fadeDur: fadeDuration,
		decode:  DecodeFile,
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Pipeline) Frames() <-chan []int16 {
	return p.frameCh
}

// Load stops whatever is playing and starts t from startSec.
func (p *Pipeline) Load(t TrackInfo, startSec float64) {
	gen := p.stop()
	// drop a load that was never picked up so the newest request wins
	select {
	case <-p.loadCh:
	default:
	}
	p.loadCh <- loadRequest{info: t, startSec: startSec, gen: gen}
}

// Stop fades out and ends the current track and cancels a load that is
// still decoding. It never blocks.
func (p *Pipeline) Stop() {
	p.stop()
}

func (p *Pipeline) stop() uint64 {
	p.mu.Lock()
	p.gen++
	gen, playing := p.gen, p.playing
	p.mu.Unlock()

	if playing {
		select {
		case p.stopCh <- struct{}{}:
		default:
		}
	}
	return gen
}

// Playing reports whether a track is currently being played.
func (p *Pipeline) Playing() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.playing
}

// FadeDuration returns the fade in/out length.
func (p *Pipeline) FadeDuration() time.Duration {
	return p.fadeDur
}

// Status returns current playback info.
func (p *Pipeline) Status() (track TrackInfo, position, duration time.Duration) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentTrack, p.trackPosition, p.trackDuration
}

// Run starts the pipeline. Blocks until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	// Background decoder: converts file paths to decoded PCM
	decodedCh := make(chan *decodedTrack, 1)
	go func() {
		defer close(decodedCh)
		var lastPath string
		var lastSamples []int16
		for {
			select {
			case <-ctx.Done():
				return
			case req := <-p.loadCh:
				samples := lastSamples
				if req.info.Path != lastPath {
					var err error
					samples, err = p.decode(req.info.Path)
					if err != nil {
						log.Printf("Decode failed %s: %v", req.info.Path, err)
						continue
					}
					lastPath, lastSamples = req.info.Path, samples
				}
				start := int(req.startSec * SampleRate / FrameSize)
				if start < 0 {
					start = 0
				}
				select {
				case decodedCh <- &decodedTrack{info: req.info, samples: samples, startFrame: start, gen: req.gen}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case dt, ok := <-decodedCh:
			if !ok {
				return
			}
			// a stop aimed at the previous track must not cut this one
			select {
			case <-p.stopCh:
			default:
			}
			p.playTrack(ctx, ticker, dt)
		}
	}
}

// playTrack plays a decoded track from its start frame until it ends, is
// stopped, or ctx is cancelled.
func (p *Pipeline) playTrack(ctx context.Context, ticker *time.Ticker, dt *decodedTrack) {
	samples := dt.samples
	totalFrames := len(samples) / FrameSamples
	fadeFrames := int(p.fadeDur / FrameDuration)

	if !p.startTrack(dt, totalFrames) {
		log.Printf("Load cancelled: %s", dt.info.Name)
		return
	}
	defer p.setPlaying(false)
	log.Printf("Now playing: %s (performance: %s, from frame %d of %d)", dt.info.Name, dt.info.PerformanceID, dt.startFrame, totalFrames)

	for i := dt.startFrame; i < totalFrames; i++ {
		frame := samples[i*FrameSamples : (i+1)*FrameSamples]
		if k := i - dt.startFrame; k < fadeFrames {
			frame = FadeFrame(frame, float64(k)/float64(fadeFrames))
		}

		err := p.sendFrame(ctx, ticker, frame, true)
		if errors.Is(err, errStopped) {
			p.fadeOut(ctx, ticker, samples, i, totalFrames, fadeFrames)
			log.Printf("Playback stopped: %s", dt.info.Name)
			return
		}
		if err != nil {
			return
		}
		p.updatePosition(i)
	}
	log.Printf("Playback finished: %s", dt.info.Name)
}

// fadeOut plays up to fadeFrames more frames from frame `from` with a falling gain.
func (p *Pipeline) fadeOut(ctx context.Context, ticker *time.Ticker, samples []int16, from, totalFrames, fadeFrames int) {
	for k := 0; k < fadeFrames && from+k < totalFrames; k++ {
		i := from + k
		frame := FadeFrame(samples[i*FrameSamples:(i+1)*FrameSamples], 1-float64(k+1)/float64(fadeFrames))
		if err := p.sendFrame(ctx, ticker, frame, false); err != nil {
			return
		}
		p.updatePosition(i)
	}
}

// sendFrame waits for the ticker then sends a frame. When interruptible, a
// pending Stop returns errStopped.
func (p *Pipeline) sendFrame(ctx context.Context, ticker *time.Ticker, frame []int16, interruptible bool) error {
	var stopCh <-chan struct{}
	if interruptible {
		stopCh = p.stopCh
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-stopCh:
		return errStopped
	case <-ticker.C:
	}

	select {
	case p.frameCh <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startTrack marks dt as playing unless a Stop arrived after it was loaded.
func (p *Pipeline) startTrack(dt *decodedTrack, totalFrames int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if dt.gen != p.gen {
		return false
	}
	p.currentTrack = dt.info
	p.playing = true
	p.trackPosition = time.Duration(dt.startFrame) * FrameDuration
	p.trackDuration = time.Duration(totalFrames) * FrameDuration
	return true
}

func (p *Pipeline) setPlaying(playing bool) {
	p.mu.Lock()
	p.playing = playing
	p.mu.Unlock()
}

func (p *Pipeline) updatePosition(frameIdx int) {
	p.mu.Lock()
	p.trackPosition = time.Duration(frameIdx) * FrameDuration
	p.mu.Unlock()
}
