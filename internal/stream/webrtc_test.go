package stream

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pion/webrtc/v4"
)

func TestWebRTCRejectsBadRequests(t *testing.T) {
	h := NewWebRTCHandler(NewBroadcaster(), nil)

	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"not json", http.MethodPost, "v=0", http.StatusBadRequest},
		{"bad sdp", http.MethodPost, `{"type":"offer","sdp":"garbage"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/offer", strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
	if h.PeerCount() != 0 {
		t.Errorf("rejected offers left %d peers", h.PeerCount())
	}
}

func TestWebRTCNegotiatesAudioAndCues(t *testing.T) {
	cues := NewFanout[[]byte](4)
	h := NewWebRTCHandler(NewBroadcaster(), cues)
	srv := httptest.NewServer(h)
	defer srv.Close()

	client, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if _, err := client.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio,
		webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}); err != nil {
		t.Fatal(err)
	}
	if _, err := client.CreateDataChannel(CueChannel, nil); err != nil {
		t.Fatal(err)
	}
	offer, err := client.CreateOffer(nil)
	if err != nil {
		t.Fatal(err)
	}
	gathered := webrtc.GatheringCompletePromise(client)
	if err := client.SetLocalDescription(offer); err != nil {
		t.Fatal(err)
	}
	<-gathered

	body, _ := json.Marshal(client.LocalDescription())
	resp, err := http.Post(srv.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var answer webrtc.SessionDescription
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		t.Fatal(err)
	}
	if answer.Type != webrtc.SDPTypeAnswer {
		t.Errorf("answer type = %v", answer.Type)
	}
	if !strings.Contains(answer.SDP, "opus") {
		t.Error("answer does not carry an Opus track")
	}
	if err := client.SetRemoteDescription(answer); err != nil {
		t.Fatalf("client rejected the answer: %v", err)
	}
	if h.PeerCount() != 1 {
		t.Errorf("PeerCount = %d, want 1", h.PeerCount())
	}
}
