package rtc

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/NooksApp/accelerator-core/internal/domain"
)

var errPeerClosed = errors.New("rtc: peer connection closed")

func defaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	}
}

// peerConnection wraps the single pion PeerConnection a provider session
// uses for all published and subscribed media.
type peerConnection struct {
	pc     *webrtc.PeerConnection
	cancel context.CancelFunc

	onICE func(webrtc.ICECandidateInit)

	mu      sync.Mutex
	remote  map[domain.StreamID]*webrtc.TrackRemote
	waiters map[domain.StreamID][]chan *webrtc.TrackRemote
	closed  bool
}

func newPeerConnection(cfg webrtc.Configuration) (*peerConnection, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &peerConnection{
		pc:      pc,
		remote:  make(map[domain.StreamID]*webrtc.TrackRemote),
		waiters: make(map[domain.StreamID][]chan *webrtc.TrackRemote),
	}, nil
}

func (p *peerConnection) start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("ice_state", s.String()).Msg("ICE state")
		if s == webrtc.ICEConnectionStateFailed || s == webrtc.ICEConnectionStateClosed {
			cancel()
		}
	})

	p.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && p.onICE != nil {
			p.onICE(cand.ToJSON())
		}
	})

	p.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		id := domain.StreamID(track.StreamID())
		log.Info().
			Str("module", "rtc").
			Str("kind", track.Kind().String()).
			Str("stream_id", string(id)).
			Msg("remote track arrived")
		p.mu.Lock()
		p.remote[id] = track
		waiters := p.waiters[id]
		delete(p.waiters, id)
		p.mu.Unlock()
		for _, ch := range waiters {
			ch <- track
		}
	})
}

// remoteTrack blocks until the remote track for the stream arrives or the
// context ends.
func (p *peerConnection) remoteTrack(ctx context.Context, id domain.StreamID) (*webrtc.TrackRemote, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errPeerClosed
	}
	if track, ok := p.remote[id]; ok {
		p.mu.Unlock()
		return track, nil
	}
	ch := make(chan *webrtc.TrackRemote, 1)
	p.waiters[id] = append(p.waiters[id], ch)
	p.mu.Unlock()

	select {
	case track := <-ch:
		return track, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *peerConnection) forgetRemote(id domain.StreamID) {
	p.mu.Lock()
	delete(p.remote, id)
	p.mu.Unlock()
}

func (p *peerConnection) addTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	return p.pc.AddTrack(track)
}

func (p *peerConnection) removeTrack(sender *webrtc.RTPSender) error {
	return p.pc.RemoveTrack(sender)
}

func (p *peerConnection) createOffer() (webrtc.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return offer, nil
}

func (p *peerConnection) applyAnswer(sdp string) error {
	return p.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	})
}

// answerOffer handles a server-initiated renegotiation.
func (p *peerConnection) answerOffer(sdp string) (webrtc.SessionDescription, error) {
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

func (p *peerConnection) addICECandidate(ci webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(ci)
}

func (p *peerConnection) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	if err := p.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("peer close error")
	}
}
