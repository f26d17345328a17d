// Package core defines the contracts between the session facade, the call
// orchestrator and the external session provider.
package core

import (
	"context"

	"github.com/NooksApp/accelerator-core/internal/domain"
)

// SignalPayload is the wire shape of the signal primitive. Data, if present,
// is always JSON-serialized before transmission.
type SignalPayload struct {
	Type string `json:"type,omitempty"`
	Data string `json:"data,omitempty"`
	To   string `json:"to,omitempty"` // connection id of the addressee
}

// Listeners receives provider push events. Bind is called once by the
// session facade before Connect; nil entries are skipped.
type Listeners struct {
	StreamCreated       func(domain.Stream)
	StreamDestroyed     func(domain.Stream)
	SignalReceived      func(SignalPayload)
	SessionConnected    func()
	SessionReconnected  func()
	SessionDisconnected func(reason string)
}

// SubscribeOptions are provider subscribe properties. The orchestrator merges
// kind-appropriate defaults under caller-supplied overrides; explicit
// overrides win.
type SubscribeOptions map[string]any

// PublisherProps describes an outgoing stream to be published.
type PublisherProps struct {
	Name      string
	Container string      // rendering container the publisher binds to
	Kind      domain.Kind // empty means camera
	AudioOnly bool
}

// Provider is the opaque handle onto the external real-time session.
// Connection establishment, media negotiation and signaling transport all
// live behind this interface.
type Provider interface {
	Connect(ctx context.Context, creds domain.Credentials) error
	Disconnect() error
	ConnectionID() string

	Publish(ctx context.Context, props PublisherProps) (Publisher, error)
	Unpublish(pub Publisher) error
	Subscribe(ctx context.Context, stream domain.Stream, container string, opts SubscribeOptions) (Subscriber, error)
	Unsubscribe(sub Subscriber) error

	Signal(ctx context.Context, payload SignalPayload) error
	ForceDisconnect(ctx context.Context, connectionID string) error
	ForceUnpublish(ctx context.Context, streamID domain.StreamID) error

	Bind(Listeners)
}
