// Package orch drives the call lifecycle: publish, subscribe, admission
// control and the stream-driven reactions, all against the session state and
// the external provider.
package orch

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/NooksApp/accelerator-core/internal/core"
	"github.com/NooksApp/accelerator-core/internal/domain"
	"github.com/NooksApp/accelerator-core/internal/events"
	"github.com/NooksApp/accelerator-core/internal/state"
)

var (
	ErrConnectionLimit = errors.New("orch: connection limit reached")
	ErrUnknownHandle   = errors.New("orch: unknown handle id")
)

// ContainerResolver picks the rendering container for a subscription from the
// stream's parsed connection metadata.
type ContainerResolver func(kind domain.Kind, data domain.ConnectionData, stream domain.Stream) string

// Options are the call policy fields, set once at construction and immutable
// thereafter.
type Options struct {
	ConnectionLimit int // 0 means no limit
	AutoSubscribe   bool
	SubscribeOnly   bool
	Container       string
	ScreenContainer string
}

type Orchestrator struct {
	State      *state.Session
	Provider   core.Provider
	Bus        *events.Bus
	Opts       Options
	Containers ContainerResolver

	mu       sync.Mutex
	active   bool
	inflight map[domain.StreamID]*subscribeAttempt
}

// subscribeAttempt is the shared result of one outstanding subscribe
// round-trip. Concurrent callers for the same stream wait on done instead of
// issuing their own provider call.
type subscribeAttempt struct {
	done chan struct{}
	sub  core.Subscriber
	err  error
}

func New(st *state.Session, provider core.Provider, bus *events.Bus, opts Options) *Orchestrator {
	o := &Orchestrator{
		State:    st,
		Provider: provider,
		Bus:      bus,
		Opts:     opts,
		inflight: make(map[domain.StreamID]*subscribeAttempt),
	}
	o.Containers = o.defaultContainer
	return o
}

func (o *Orchestrator) defaultContainer(kind domain.Kind, data domain.ConnectionData, _ domain.Stream) string {
	if c := data.String("container"); c != "" {
		return c
	}
	if kind.Slot() == domain.KindScreen {
		return o.Opts.ScreenContainer
	}
	return o.Opts.Container
}

func (o *Orchestrator) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

func (o *Orchestrator) setActive(v bool) {
	o.mu.Lock()
	o.active = v
	o.mu.Unlock()
}

// AbleToJoin gates admission on the count of camera streams across the whole
// session, not merely local publishers. Always true when no limit is set.
func (o *Orchestrator) AbleToJoin() bool {
	if o.Opts.ConnectionLimit == 0 {
		return true
	}
	return o.State.CameraStreamCount() < o.Opts.ConnectionLimit
}

// BindSessionEvents attaches the orchestrator's network-driven reactions to
// the bus. Called once when the session core is constructed.
func (o *Orchestrator) BindSessionEvents() {
	o.Bus.On(events.StreamCreated, func(data any, _ string) {
		if stream, ok := data.(domain.Stream); ok {
			o.onStreamCreated(stream)
		}
	})
	o.Bus.On(events.StreamDestroyed, func(data any, _ string) {
		if stream, ok := data.(domain.Stream); ok {
			o.onStreamDestroyed(stream)
		}
	})
}

func (o *Orchestrator) onStreamCreated(stream domain.Stream) {
	if !o.Active() || !o.Opts.AutoSubscribe {
		return
	}
	if _, err := o.Subscribe(context.Background(), stream, nil, false); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("stream", string(stream.ID)).Msg("auto-subscribe failed")
	}
}

// onStreamDestroyed runs after the facade has already removed the stream and
// its subscriber from session state, so the snapshot it emits is consistent.
func (o *Orchestrator) onStreamDestroyed(stream domain.Stream) {
	pubSub := o.State.GetPubSub()
	if stream.Kind().Slot() == domain.KindScreen {
		o.Bus.Trigger(events.UnsubscribeFromScreen, pubSub)
		o.Bus.Trigger(events.EndViewingSharedScreen, stream)
		return
	}
	o.Bus.Trigger(events.UnsubscribeFromCamera, pubSub)
}
