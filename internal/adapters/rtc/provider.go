// Package rtc is the reference session-provider adapter: JSON envelopes over
// a websocket signaling connection plus one pion PeerConnection for media.
package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/NooksApp/accelerator-core/internal/core"
	"github.com/NooksApp/accelerator-core/internal/domain"
)

var (
	ErrNotConnected = errors.New("rtc: not connected")
	ErrBackpressure = errors.New("rtc: send buffer full")
)

const writeDeadline = 5 * time.Second

// envelope is the signaling wire format, both directions.
type envelope struct {
	Type      string              `json:"type"`
	RequestID string              `json:"requestId,omitempty"`
	Error     *wireError          `json:"error,omitempty"`
	APIKey    string              `json:"apiKey,omitempty"`
	SessionID string              `json:"sessionId,omitempty"`
	Token     string              `json:"token,omitempty"`
	Conn      string              `json:"connectionId,omitempty"`
	Stream    *domain.Stream      `json:"stream,omitempty"`
	StreamID  domain.StreamID     `json:"streamId,omitempty"`
	Signal    *core.SignalPayload `json:"signal,omitempty"`
	SDP       string              `json:"sdp,omitempty"`
	Candidate *candidateInit      `json:"candidate,omitempty"`
	Reason    string              `json:"reason,omitempty"`
}

type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type candidateInit struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// Renderer receives RTP packets for a subscribed stream. The core never sees
// media; where packets go is the embedder's concern.
type Renderer func(container string, stream domain.Stream, pkt *rtp.Packet)

// Provider implements core.Provider against a websocket signaling endpoint.
type Provider struct {
	URL    string
	Render Renderer

	mu        sync.Mutex
	conn      *websocket.Conn
	send      chan []byte
	pending   map[string]chan envelope
	listeners core.Listeners
	connID    string
	peer      *peerConnection
	cancel    context.CancelFunc
	connected bool
}

func New(url string) *Provider {
	return &Provider{
		URL:     url,
		pending: make(map[string]chan envelope),
	}
}

func (p *Provider) Bind(ls core.Listeners) {
	p.mu.Lock()
	p.listeners = ls
	p.mu.Unlock()
}

func (p *Provider) ConnectionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connID
}

// Connect dials the signaling endpoint, performs the credential handshake
// and brings up the peer connection.
func (p *Provider) Connect(ctx context.Context, creds domain.Credentials) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, p.URL, nil)
	if err != nil {
		return fmt.Errorf("rtc: dial signaling: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	p.conn = ws
	p.send = make(chan []byte, 64)
	p.cancel = cancel
	p.mu.Unlock()

	go p.writePump(runCtx, ws)
	go p.readPump(ws)

	resp, err := p.request(ctx, envelope{
		Type:      "connect",
		APIKey:    creds.APIKey,
		SessionID: creds.SessionID,
		Token:     creds.Token,
	})
	if err != nil {
		p.teardown()
		return fmt.Errorf("rtc: connect handshake: %w", err)
	}

	peer, err := newPeerConnection(defaultWebRTCConfig())
	if err != nil {
		p.teardown()
		return fmt.Errorf("rtc: peer connection: %w", err)
	}
	peer.onICE = p.sendCandidate
	peer.start(runCtx)

	p.mu.Lock()
	p.connID = resp.Conn
	p.peer = peer
	p.connected = true
	ls := p.listeners
	p.mu.Unlock()

	log.Info().Str("module", "rtc").Str("connection", resp.Conn).Msg("session connected")
	if ls.SessionConnected != nil {
		ls.SessionConnected()
	}
	return nil
}

func (p *Provider) Disconnect() error {
	p.mu.Lock()
	connected := p.connected
	p.mu.Unlock()
	if !connected {
		return nil
	}
	if err := p.enqueue(envelope{Type: "bye"}); err != nil {
		log.Debug().Err(err).Str("module", "rtc").Msg("bye not delivered")
	}
	p.teardown()
	return nil
}

func (p *Provider) teardown() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	if p.peer != nil {
		p.peer.close()
		p.peer = nil
	}
	conn := p.conn
	p.conn = nil
	p.connected = false
	p.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// Publish creates local tracks for the new stream, registers them on the
// peer connection and announces the stream to the session.
func (p *Provider) Publish(ctx context.Context, props core.PublisherProps) (core.Publisher, error) {
	p.mu.Lock()
	peer := p.peer
	connID := p.connID
	p.mu.Unlock()
	if peer == nil {
		return nil, ErrNotConnected
	}

	kind := props.Kind
	if kind == "" {
		kind = domain.KindCamera
	}

	pub := &publisher{
		id:        uuid.NewString(),
		streamID:  domain.StreamID(uuid.NewString()),
		kind:      kind,
		container: props.Container,
	}

	audio, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", string(pub.streamID),
	)
	if err != nil {
		return nil, fmt.Errorf("rtc: audio track: %w", err)
	}
	pub.audioTrack = audio
	if pub.audioSender, err = peer.addTrack(audio); err != nil {
		return nil, fmt.Errorf("rtc: add audio track: %w", err)
	}

	if !props.AudioOnly {
		video, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
			"video", string(pub.streamID),
		)
		if err != nil {
			return nil, fmt.Errorf("rtc: video track: %w", err)
		}
		pub.videoTrack = video
		if pub.videoSender, err = peer.addTrack(video); err != nil {
			return nil, fmt.Errorf("rtc: add video track: %w", err)
		}
	}

	if err := p.negotiate(ctx, peer); err != nil {
		return nil, err
	}

	stream := domain.Stream{
		ID:           pub.streamID,
		Name:         props.Name,
		VideoType:    kind,
		ConnectionID: connID,
		HasAudio:     true,
		HasVideo:     !props.AudioOnly,
	}
	if _, err := p.request(ctx, envelope{Type: "publish", Stream: &stream}); err != nil {
		return nil, err
	}
	return pub, nil
}

func (p *Provider) Unpublish(pub core.Publisher) error {
	handle, ok := pub.(*publisher)
	if !ok {
		return fmt.Errorf("rtc: foreign publisher handle %s", pub.ID())
	}
	p.mu.Lock()
	peer := p.peer
	p.mu.Unlock()
	if peer != nil {
		if handle.audioSender != nil {
			_ = peer.removeTrack(handle.audioSender)
		}
		if handle.videoSender != nil {
			_ = peer.removeTrack(handle.videoSender)
		}
	}
	return p.enqueue(envelope{Type: "unpublish", StreamID: handle.streamID})
}

// Subscribe asks the session for the stream's media and starts a pump that
// delivers RTP to the renderer once the remote track arrives.
func (p *Provider) Subscribe(ctx context.Context, stream domain.Stream, container string, opts core.SubscribeOptions) (core.Subscriber, error) {
	p.mu.Lock()
	peer := p.peer
	render := p.Render
	p.mu.Unlock()
	if peer == nil {
		return nil, ErrNotConnected
	}

	if _, err := p.request(ctx, envelope{Type: "subscribe", StreamID: stream.ID}); err != nil {
		return nil, err
	}

	sub := &subscriber{
		id:        uuid.NewString(),
		stream:    stream,
		container: container,
	}
	sub.audio.Store(optBool(opts, "subscribeToAudio", true))
	sub.video.Store(optBool(opts, "subscribeToVideo", true))

	pumpCtx, cancel := context.WithCancel(context.Background())
	sub.cancel = cancel
	go func() {
		track, err := peer.remoteTrack(pumpCtx, stream.ID)
		if err != nil {
			log.Warn().Err(err).Str("module", "rtc").Str("stream", string(stream.ID)).Msg("remote track never arrived")
			return
		}
		sub.pump(pumpCtx, track, func(pkt *rtp.Packet) {
			if render != nil {
				render(container, stream, pkt)
			}
		})
	}()
	return sub, nil
}

func (p *Provider) Unsubscribe(sub core.Subscriber) error {
	handle, ok := sub.(*subscriber)
	if !ok {
		return fmt.Errorf("rtc: foreign subscriber handle %s", sub.ID())
	}
	handle.stop()
	p.mu.Lock()
	if p.peer != nil {
		p.peer.forgetRemote(handle.stream.ID)
	}
	p.mu.Unlock()
	return p.enqueue(envelope{Type: "unsubscribe", StreamID: handle.stream.ID})
}

func (p *Provider) Signal(ctx context.Context, payload core.SignalPayload) error {
	_, err := p.request(ctx, envelope{Type: "signal", Signal: &payload})
	return err
}

func (p *Provider) ForceDisconnect(ctx context.Context, connectionID string) error {
	_, err := p.request(ctx, envelope{Type: "forceDisconnect", Conn: connectionID})
	return err
}

func (p *Provider) ForceUnpublish(ctx context.Context, streamID domain.StreamID) error {
	_, err := p.request(ctx, envelope{Type: "forceUnpublish", StreamID: streamID})
	return err
}

// negotiate runs one offer/answer round with the session after local tracks
// changed.
func (p *Provider) negotiate(ctx context.Context, peer *peerConnection) error {
	offer, err := peer.createOffer()
	if err != nil {
		return fmt.Errorf("rtc: create offer: %w", err)
	}
	resp, err := p.request(ctx, envelope{Type: "offer", SDP: offer.SDP})
	if err != nil {
		return err
	}
	if err := peer.applyAnswer(resp.SDP); err != nil {
		return fmt.Errorf("rtc: apply answer: %w", err)
	}
	return nil
}

func (p *Provider) sendCandidate(ci webrtc.ICECandidateInit) {
	err := p.enqueue(envelope{Type: "candidate", Candidate: &candidateInit{
		Candidate:     ci.Candidate,
		SDPMid:        ci.SDPMid,
		SDPMLineIndex: ci.SDPMLineIndex,
	}})
	if err != nil {
		log.Warn().Err(err).Str("module", "rtc").Msg("candidate dropped")
	}
}
