package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	log "github.com/sirupsen/logrus"
	"gopkg.in/hraban/opus.v2"

	"github.com/satindergrewal/countsheet/internal/audio"
)

// CueChannel is the label of the data channel carrying count cues. The client
// creates it in its offer; the server writes JSON cues to it.
const CueChannel = "cues"

const (
	opusBitrate   = 128000
	gatherTimeout = 10 * time.Second
)

// WebRTCHandler negotiates peers that receive the rehearsal audio as Opus
// and the active count on the cue data channel.
type WebRTCHandler struct {
	broadcaster *Broadcaster
	cues        *Fanout[[]byte]

	mu    sync.Mutex
	peers map[*webrtc.PeerConnection]struct{}
}

// NewWebRTCHandler creates a WebRTC stream handler. cues may be nil, in which
// case data channels are accepted but stay silent.
func NewWebRTCHandler(b *Broadcaster, cues *Fanout[[]byte]) *WebRTCHandler {
	return &WebRTCHandler{
		broadcaster: b,
		cues:        cues,
		peers:       make(map[*webrtc.PeerConnection]struct{}),
	}
}

// PeerCount returns the number of active WebRTC peers.
func (h *WebRTCHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *WebRTCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}

	pc, track, err := h.negotiate(r.Context(), offer)
	if err != nil {
		status := http.StatusInternalServerError
		if ftag.Get(err) == ftag.InvalidArgument {
			status = http.StatusBadRequest
		}
		log.WithError(err).Warn("WebRTC negotiation failed")
		http.Error(w, fmsg.GetIssue(err), status)
		return
	}

	h.addPeer(pc)
	go h.streamAudio(pc, track)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pc.LocalDescription())
}

// negotiate answers offer with a peer that carries one Opus track. The
// returned answer already holds every ICE candidate.
func (h *WebRTCHandler) negotiate(ctx context.Context, offer webrtc.SessionDescription) (*webrtc.PeerConnection, *webrtc.TrackLocalStaticSample, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, nil, fault.Wrap(err, fmsg.WithDesc("new peer connection", "create peer connection failed"))
	}
	fail := func(err error, msg string, kind ftag.Kind) (*webrtc.PeerConnection, *webrtc.TrackLocalStaticSample, error) {
		pc.Close()
		return nil, nil, fault.Wrap(err, fmsg.WithDesc(msg, msg), ftag.With(kind))
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"countsheet-rehearsal",
	)
	if err != nil {
		return fail(err, "create audio track failed", ftag.Internal)
	}
	if _, err := pc.AddTrack(track); err != nil {
		return fail(err, "add track failed", ftag.Internal)
	}

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != CueChannel {
			return
		}
		dc.OnOpen(func() {
			go h.streamCues(dc)
		})
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		switch s {
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed,
			webrtc.PeerConnectionStateDisconnected:
			if h.removePeer(pc) {
				pc.Close()
				log.Printf("WebRTC peer disconnected (remaining: %d)", h.PeerCount())
			}
		}
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		return fail(err, "set remote description failed", ftag.InvalidArgument)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fail(err, "create answer failed", ftag.Internal)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return fail(err, "set local description failed", ftag.Internal)
	}

	ctx, cancel := context.WithTimeout(ctx, gatherTimeout)
	defer cancel()
	select {
	case <-gathered:
	case <-ctx.Done():
		return fail(ctx.Err(), "ICE gathering timed out", ftag.Internal)
	}
	return pc, track, nil
}

func (h *WebRTCHandler) addPeer(pc *webrtc.PeerConnection) {
	h.mu.Lock()
	h.peers[pc] = struct{}{}
	n := len(h.peers)
	h.mu.Unlock()
	log.Printf("WebRTC peer connected (total: %d)", n)
}

// removePeer forgets pc and reports whether it was still registered.
func (h *WebRTCHandler) removePeer(pc *webrtc.PeerConnection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.peers[pc]; !ok {
		return false
	}
	delete(h.peers, pc)
	return true
}

// streamAudio encodes broadcaster frames to Opus and writes them to track
// until the peer goes away.
func (h *WebRTCHandler) streamAudio(pc *webrtc.PeerConnection, track *webrtc.TrackLocalStaticSample) {
	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		log.Printf("WebRTC: opus encoder error: %v", err)
		return
	}
	enc.SetBitrate(opusBitrate)

	packet := make([]byte, 4000)
	for {
		select {
		case <-listener.Done():
			return
		case frame, ok := <-listener.C:
			if !ok || pc.ConnectionState() == webrtc.PeerConnectionStateClosed {
				return
			}
			n, err := enc.Encode(frame, packet)
			if err != nil {
				log.Printf("WebRTC: opus encode error: %v", err)
				continue
			}
			if err := track.WriteSample(media.Sample{Data: packet[:n], Duration: audio.FrameDuration}); err != nil {
				return
			}
		}
	}
}

// streamCues forwards JSON cues to an open data channel until it closes.
func (h *WebRTCHandler) streamCues(dc *webrtc.DataChannel) {
	if h.cues == nil {
		return
	}
	listener := h.cues.Subscribe()
	defer h.cues.Unsubscribe(listener)

	closed := make(chan struct{})
	dc.OnClose(func() { close(closed) })

	for {
		select {
		case <-closed:
			return
		case <-listener.Done():
			return
		case msg := <-listener.C:
			if err := dc.SendText(string(msg)); err != nil {
				log.Printf("WebRTC: cue send error: %v", err)
				return
			}
		}
	}
}
