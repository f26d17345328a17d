package modules

import (
	"context"
	"sync"

	"github.com/NooksApp/accelerator-core/internal/core"
	"github.com/NooksApp/accelerator-core/internal/domain"
	"github.com/NooksApp/accelerator-core/internal/events"
)

// ScreenSharing publishes a screen-kind stream on demand. At most one local
// screen publisher exists at a time.
type ScreenSharing struct {
	cap Capability

	mu  sync.Mutex
	pub core.Publisher
}

func NewScreenSharing() *ScreenSharing {
	return &ScreenSharing{}
}

func (s *ScreenSharing) Name() string { return "screenSharing" }

func (s *ScreenSharing) Start(cap Capability) error {
	s.cap = cap
	return nil
}

func (s *ScreenSharing) Stop() {
	s.EndSharing()
}

// StartSharing publishes the local screen. Idempotent while a share is live.
func (s *ScreenSharing) StartSharing(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pub != nil {
		return nil
	}
	pub, err := s.cap.Publish(ctx, core.PublisherProps{Name: "screen", Kind: domain.KindScreen})
	if err != nil {
		return err
	}
	if pub == nil {
		// subscribe-only token, nothing was published
		return nil
	}
	s.pub = pub
	s.cap.TriggerEvent(events.StartScreenShare, s.cap.GetPubSub())
	return nil
}

// EndSharing unpublishes the screen if one is live. Safe to call repeatedly.
func (s *ScreenSharing) EndSharing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pub == nil {
		return
	}
	s.cap.Unpublish(s.pub)
	s.pub = nil
	s.cap.TriggerEvent(events.EndScreenShare, s.cap.GetPubSub())
}
