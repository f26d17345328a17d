// Package modules defines the contract between the session core and the
// optional feature modules, plus the reference implementations shipped with
// the core. Modules only ever see the Capability surface; they know nothing
// about each other.
package modules

import (
	"context"

	"github.com/NooksApp/accelerator-core/internal/app/orch"
	"github.com/NooksApp/accelerator-core/internal/core"
	"github.com/NooksApp/accelerator-core/internal/domain"
	"github.com/NooksApp/accelerator-core/internal/events"
	"github.com/NooksApp/accelerator-core/internal/state"
)

// Capability is the object handed to every feature module: event bus access
// plus the orchestrator entry points.
type Capability interface {
	On(event string, cb events.Callback) string
	Off(event, token string)
	RegisterEvents(names ...string)
	TriggerEvent(event string, data any)

	StartCall(ctx context.Context, props core.PublisherProps) (*orch.Started, error)
	EndCall()
	Publish(ctx context.Context, props core.PublisherProps) (core.Publisher, error)
	Unpublish(pub core.Publisher)
	Subscribe(ctx context.Context, stream domain.Stream, opts core.SubscribeOptions) (core.Subscriber, error)
	Unsubscribe(sub core.Subscriber)
	Signal(ctx context.Context, signalType string, data any, to string) error

	ToggleLocalAudio(handleID string, enabled bool) error
	ToggleLocalVideo(handleID string, enabled bool) error
	ToggleRemoteAudio(handleID string, enabled bool) error
	ToggleRemoteVideo(handleID string, enabled bool) error

	GetPubSub() state.PubSub
}

// Module is the lifecycle contract every feature module satisfies.
type Module interface {
	Name() string
	Start(cap Capability) error
	Stop()
}

// Set groups the fixed module variants. A nil field means the feature is
// absent; there is no runtime lookup.
type Set struct {
	TextChat      *TextChat
	ScreenSharing *ScreenSharing
	Annotation    Module
	Archiving     Module
}

// All lists the configured modules in wiring order.
func (s Set) All() []Module {
	out := make([]Module, 0, 4)
	if s.TextChat != nil {
		out = append(out, s.TextChat)
	}
	if s.ScreenSharing != nil {
		out = append(out, s.ScreenSharing)
	}
	if s.Annotation != nil {
		out = append(out, s.Annotation)
	}
	if s.Archiving != nil {
		out = append(out, s.Archiving)
	}
	return out
}
