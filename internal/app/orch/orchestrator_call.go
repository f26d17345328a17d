package orch

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/NooksApp/accelerator-core/internal/core"
	"github.com/NooksApp/accelerator-core/internal/domain"
	"github.com/NooksApp/accelerator-core/internal/events"
	"github.com/NooksApp/accelerator-core/internal/state"
)

// Started is the result of a successful StartCall: the current pub/sub
// snapshot plus the new publisher (nil with a subscribe-only token).
type Started struct {
	PubSub    state.PubSub
	Publisher core.Publisher
}

// StartCall publishes into the session and, when auto-subscribe is on,
// subscribes to every stream that existed before the call began. Admission
// is checked first; rejection never reaches the provider.
func (o *Orchestrator) StartCall(ctx context.Context, props core.PublisherProps) (*Started, error) {
	o.setActive(true)

	if !o.AbleToJoin() {
		o.setActive(false)
		o.Bus.Trigger(events.Error, "the call has reached its connection limit")
		return nil, ErrConnectionLimit
	}

	// Streams created while the publish round-trip is in flight are handled
	// by the ordinary streamCreated listener, not this batch.
	preexisting := o.State.Streams()

	pub, err := o.Publish(ctx, props)
	if err != nil {
		o.setActive(false)
		return nil, err
	}

	if o.Opts.AutoSubscribe {
		var wg sync.WaitGroup
		for _, stream := range preexisting {
			wg.Add(1)
			go func(s domain.Stream) {
				defer wg.Done()
				// Publishing success must not be undone by a failed
				// pre-existing subscription.
				if _, err := o.Subscribe(ctx, s, nil, false); err != nil {
					log.Warn().Err(err).Str("module", "orch").Str("stream", string(s.ID)).Msg("pre-existing subscription failed")
				}
			}(stream)
		}
		wg.Wait()
	}

	started := &Started{PubSub: o.State.GetPubSub(), Publisher: pub}
	o.Bus.Trigger(events.StartCall, started.PubSub)
	log.Info().Str("module", "orch").Int("preexisting", len(preexisting)).Msg("call started")
	return started, nil
}

// EndCall tears down every tracked publisher and subscriber best-effort: it
// does not wait for provider round-trips to confirm, and failures are only
// logged.
func (o *Orchestrator) EndCall() {
	pubSub := o.State.GetPubSub()

	unpublish := func(handles map[string]core.Publisher) {
		for _, pub := range handles {
			if err := o.Provider.Unpublish(pub); err != nil {
				log.Warn().Err(err).Str("module", "orch").Str("publisher", pub.ID()).Msg("unpublish failed")
			}
		}
	}
	unpublish(pubSub.Publishers.Camera)
	unpublish(pubSub.Publishers.Screen)

	for _, sub := range pubSub.Subscribers.Camera {
		o.Unsubscribe(sub)
	}
	for _, sub := range pubSub.Subscribers.Screen {
		o.Unsubscribe(sub)
	}

	o.State.ResetPublishers()
	o.setActive(false)
	o.Bus.Trigger(events.EndCall, nil)
	log.Info().Str("module", "orch").Msg("call ended")
}
