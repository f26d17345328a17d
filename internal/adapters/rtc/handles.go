package rtc

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/NooksApp/accelerator-core/internal/domain"
)

// publisher implements core.Publisher over a pair of local RTP tracks.
// Muting a track swaps the sender payload out rather than renegotiating.
type publisher struct {
	id        string
	streamID  domain.StreamID
	kind      domain.Kind
	container string

	mu          sync.Mutex
	audioTrack  *webrtc.TrackLocalStaticRTP
	videoTrack  *webrtc.TrackLocalStaticRTP
	audioSender *webrtc.RTPSender
	videoSender *webrtc.RTPSender
}

func (p *publisher) ID() string                { return p.id }
func (p *publisher) StreamID() domain.StreamID { return p.streamID }
func (p *publisher) Kind() domain.Kind         { return p.kind }

func (p *publisher) PublishAudio(enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audioSender == nil {
		return nil
	}
	if enabled {
		return p.audioSender.ReplaceTrack(p.audioTrack)
	}
	return p.audioSender.ReplaceTrack(nil)
}

func (p *publisher) PublishVideo(enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.videoSender == nil {
		return nil
	}
	if enabled {
		return p.videoSender.ReplaceTrack(p.videoTrack)
	}
	return p.videoSender.ReplaceTrack(nil)
}

// subscriber implements core.Subscriber. A pump goroutine drains RTP from
// the remote track; per-kind atomic flags gate delivery to the renderer.
type subscriber struct {
	id        string
	stream    domain.Stream
	container string

	audio  atomic.Bool
	video  atomic.Bool
	frames atomic.Uint64

	cancel context.CancelFunc
}

func (s *subscriber) ID() string            { return s.id }
func (s *subscriber) Stream() domain.Stream { return s.stream }

func (s *subscriber) SubscribeToAudio(enabled bool) error {
	s.audio.Store(enabled)
	return nil
}

func (s *subscriber) SubscribeToVideo(enabled bool) error {
	s.video.Store(enabled)
	return nil
}

// Frames reports how many RTP packets were delivered to the renderer.
func (s *subscriber) Frames() uint64 { return s.frames.Load() }

func (s *subscriber) pump(ctx context.Context, track *webrtc.TrackRemote, render func(*rtp.Packet)) {
	kind := track.Kind()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Warn().Err(err).Str("module", "rtc").Str("subscriber", s.id).Msg("pump read error, stopping")
			return
		}
		if kind == webrtc.RTPCodecTypeAudio && !s.audio.Load() {
			continue
		}
		if kind == webrtc.RTPCodecTypeVideo && !s.video.Load() {
			continue
		}
		s.frames.Add(1)
		if render != nil {
			render(pkt)
		}
	}
}

func (s *subscriber) stop() {
	if s.cancel != nil {
		s.cancel()
	}
}
