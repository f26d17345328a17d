package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/NooksApp/accelerator-core/internal/app/orch"
	"github.com/NooksApp/accelerator-core/internal/core"
	"github.com/NooksApp/accelerator-core/internal/domain"
	"github.com/NooksApp/accelerator-core/internal/events"
	"github.com/NooksApp/accelerator-core/internal/state"
)

// Event bus surface.

func (c *Core) On(event string, cb events.Callback) string { return c.bus.On(event, cb) }
func (c *Core) Off(event, token string)                    { c.bus.Off(event, token) }
func (c *Core) RegisterEvents(names ...string)             { c.bus.Register(names...) }
func (c *Core) TriggerEvent(event string, data any)        { c.bus.Trigger(event, data) }

// Orchestrator entry points.

func (c *Core) StartCall(ctx context.Context, props core.PublisherProps) (*orch.Started, error) {
	return c.orch.StartCall(ctx, props)
}

func (c *Core) EndCall() { c.orch.EndCall() }

func (c *Core) Publish(ctx context.Context, props core.PublisherProps) (core.Publisher, error) {
	return c.orch.Publish(ctx, props)
}

func (c *Core) Unpublish(pub core.Publisher) { c.orch.Unpublish(pub) }

func (c *Core) Subscribe(ctx context.Context, stream domain.Stream, opts core.SubscribeOptions) (core.Subscriber, error) {
	return c.orch.Subscribe(ctx, stream, opts, false)
}

func (c *Core) Unsubscribe(sub core.Subscriber) { c.orch.Unsubscribe(sub) }

// AV toggles. Handle ids come from a current pub/sub snapshot.

func (c *Core) ToggleLocalAudio(handleID string, enabled bool) error {
	return c.orch.EnableLocalAV(handleID, core.TrackAudio, enabled)
}

func (c *Core) ToggleLocalVideo(handleID string, enabled bool) error {
	return c.orch.EnableLocalAV(handleID, core.TrackVideo, enabled)
}

func (c *Core) ToggleRemoteAudio(handleID string, enabled bool) error {
	return c.orch.EnableRemoteAV(handleID, core.TrackAudio, enabled)
}

func (c *Core) ToggleRemoteVideo(handleID string, enabled bool) error {
	return c.orch.EnableRemoteAV(handleID, core.TrackVideo, enabled)
}

// Signal sends a typed payload through the provider. Data, if present, is
// JSON-serialized before transmission.
func (c *Core) Signal(ctx context.Context, signalType string, data any, to string) error {
	payload := core.SignalPayload{Type: signalType, To: to}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("signal: marshal data: %w", err)
		}
		payload.Data = string(b)
	}
	if err := c.provider.Signal(ctx, payload); err != nil {
		return fmt.Errorf("signal: %w", err)
	}
	return nil
}

// Forwarding calls for moderation.

func (c *Core) ForceDisconnect(ctx context.Context, connectionID string) error {
	return c.provider.ForceDisconnect(ctx, connectionID)
}

func (c *Core) ForceUnpublish(ctx context.Context, streamID domain.StreamID) error {
	return c.provider.ForceUnpublish(ctx, streamID)
}

// Read surface.

func (c *Core) GetPubSub() state.PubSub { return c.state.GetPubSub() }
func (c *Core) Connected() bool         { return c.state.Connected() }
func (c *Core) CallActive() bool        { return c.orch.Active() }
func (c *Core) State() *state.Session   { return c.state }
