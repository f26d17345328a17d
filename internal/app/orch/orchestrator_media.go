package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/NooksApp/accelerator-core/internal/core"
	"github.com/NooksApp/accelerator-core/internal/domain"
	"github.com/NooksApp/accelerator-core/internal/events"
)

// Publish creates a provider publisher bound to its container and records it
// in session state. With a subscribe-only token this is a deliberate no-op
// returning a nil publisher.
func (o *Orchestrator) Publish(ctx context.Context, props core.PublisherProps) (core.Publisher, error) {
	if o.Opts.SubscribeOnly {
		return nil, nil
	}
	if props.Kind == "" {
		props.Kind = domain.KindCamera
	}
	if props.Container == "" {
		if props.Kind.Slot() == domain.KindScreen {
			props.Container = o.Opts.ScreenContainer
		} else {
			props.Container = o.Opts.Container
		}
	}

	pub, err := o.Provider.Publish(ctx, props)
	if err != nil {
		o.Bus.Trigger(events.Error, userFacing(err))
		return nil, fmt.Errorf("publish: %w", err)
	}
	o.State.AddPublisher(pub)
	return pub, nil
}

// userFacing maps the known connect-failure code onto a connectivity hint;
// other provider errors pass through verbatim.
func userFacing(err error) string {
	var perr *core.ProviderError
	if errors.As(err, &perr) && perr.Code == core.CodeConnectFailed {
		return "Unable to publish to the session: check your network connection"
	}
	return err.Error()
}

// Subscribe resolves an incoming stream to a local subscriber. If the stream
// is already mapped and this is not a network test, the existing handle is
// returned and no duplicate subscription is created. At most one subscribe
// attempt per stream is outstanding at any time: the stream is claimed under
// the orchestrator mutex before the provider round-trip, and a concurrent
// caller waits for the claimed attempt's result instead of racing it.
func (o *Orchestrator) Subscribe(ctx context.Context, stream domain.Stream, overrides core.SubscribeOptions, isNetworkTest bool) (core.Subscriber, error) {
	if isNetworkTest {
		return o.doSubscribe(ctx, stream, overrides)
	}

	o.mu.Lock()
	if sub, ok := o.State.SubscriberFor(stream.ID); ok {
		o.mu.Unlock()
		return sub, nil
	}
	if attempt, ok := o.inflight[stream.ID]; ok {
		o.mu.Unlock()
		select {
		case <-attempt.done:
			return attempt.sub, attempt.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	attempt := &subscribeAttempt{done: make(chan struct{})}
	o.inflight[stream.ID] = attempt
	o.mu.Unlock()

	// The subscriber is registered before the claim is released, so a caller
	// arriving after the release always hits the SubscriberFor check.
	attempt.sub, attempt.err = o.doSubscribe(ctx, stream, overrides)
	o.mu.Lock()
	delete(o.inflight, stream.ID)
	o.mu.Unlock()
	close(attempt.done)

	return attempt.sub, attempt.err
}

func (o *Orchestrator) doSubscribe(ctx context.Context, stream domain.Stream, overrides core.SubscribeOptions) (core.Subscriber, error) {
	kind := stream.Kind()
	data := domain.ParseConnectionData(stream.ConnectionData)
	container := o.Containers(kind, data, stream)

	opts := subscribeDefaults(kind)
	for k, v := range overrides {
		opts[k] = v
	}

	sub, err := o.Provider.Subscribe(ctx, stream, container, opts)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", stream.ID, err)
	}
	o.State.AddSubscriber(sub)

	pubSub := o.State.GetPubSub()
	switch kind {
	case domain.KindScreen:
		o.Bus.Trigger(events.SubscribeToScreen, pubSub)
		o.Bus.Trigger(events.StartViewingSharedScreen, sub)
	case domain.KindSIP:
		o.Bus.Trigger(events.SubscribeToSIP, pubSub)
	default:
		o.Bus.Trigger(events.SubscribeToCamera, pubSub)
	}
	return sub, nil
}

func subscribeDefaults(kind domain.Kind) core.SubscribeOptions {
	switch kind {
	case domain.KindScreen:
		return core.SubscribeOptions{
			"subscribeToAudio": false,
			"subscribeToVideo": true,
			"showControls":     false,
		}
	case domain.KindSIP:
		return core.SubscribeOptions{
			"subscribeToAudio": true,
			"subscribeToVideo": false,
		}
	default:
		return core.SubscribeOptions{
			"subscribeToAudio": true,
			"subscribeToVideo": true,
			"showControls":     true,
		}
	}
}

// Unsubscribe is best-effort cleanup: the registry entry goes away even when
// the provider call fails, and failures are never propagated.
func (o *Orchestrator) Unsubscribe(sub core.Subscriber) {
	o.State.RemoveSubscriber(sub)
	if err := o.Provider.Unsubscribe(sub); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("subscriber", sub.ID()).Msg("unsubscribe failed")
	}
}

// Unpublish removes a tracked publisher and issues the provider unpublish,
// best-effort like Unsubscribe.
func (o *Orchestrator) Unpublish(pub core.Publisher) {
	o.State.RemovePublisher(pub)
	if err := o.Provider.Unpublish(pub); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("publisher", pub.ID()).Msg("unpublish failed")
	}
}

// EnableLocalAV toggles publishing of one track on a tracked publisher.
// A stale handle id fails with ErrUnknownHandle; callers are expected to use
// ids from a current snapshot.
func (o *Orchestrator) EnableLocalAV(handleID string, track core.Track, enable bool) error {
	pub, ok := o.State.PublisherByID(handleID)
	if !ok {
		return ErrUnknownHandle
	}
	if track == core.TrackAudio {
		return pub.PublishAudio(enable)
	}
	return pub.PublishVideo(enable)
}

// EnableRemoteAV toggles reception of one track on a tracked subscriber.
func (o *Orchestrator) EnableRemoteAV(handleID string, track core.Track, enable bool) error {
	sub, ok := o.State.SubscriberByID(handleID)
	if !ok {
		return ErrUnknownHandle
	}
	if track == core.TrackAudio {
		return sub.SubscribeToAudio(enable)
	}
	return sub.SubscribeToVideo(enable)
}
