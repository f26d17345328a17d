package orch

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NooksApp/accelerator-core/internal/core"
	"github.com/NooksApp/accelerator-core/internal/domain"
	"github.com/NooksApp/accelerator-core/internal/events"
	"github.com/NooksApp/accelerator-core/internal/state"
)

type fakePublisher struct {
	id       string
	streamID domain.StreamID
	kind     domain.Kind
}

func (p *fakePublisher) ID() string                { return p.id }
func (p *fakePublisher) StreamID() domain.StreamID { return p.streamID }
func (p *fakePublisher) Kind() domain.Kind         { return p.kind }
func (p *fakePublisher) PublishAudio(bool) error   { return nil }
func (p *fakePublisher) PublishVideo(bool) error   { return nil }

type fakeSubscriber struct {
	id     string
	stream domain.Stream
	audio  bool
	video  bool
}

func (s *fakeSubscriber) ID() string            { return s.id }
func (s *fakeSubscriber) Stream() domain.Stream { return s.stream }
func (s *fakeSubscriber) SubscribeToAudio(v bool) error {
	s.audio = v
	return nil
}
func (s *fakeSubscriber) SubscribeToVideo(v bool) error {
	s.video = v
	return nil
}

type fakeProvider struct {
	mu sync.Mutex

	publishCalls   int
	subscribeCalls []domain.StreamID
	lastOpts       core.SubscribeOptions
	unpublished    []string
	unsubscribed   []string

	publishErr   error
	subscribeErr map[domain.StreamID]error

	// when set, Subscribe announces itself on entered and parks on block
	entered chan struct{}
	block   chan struct{}
}

func (f *fakeProvider) Connect(context.Context, domain.Credentials) error { return nil }
func (f *fakeProvider) Disconnect() error                                 { return nil }
func (f *fakeProvider) ConnectionID() string                              { return "conn-local" }
func (f *fakeProvider) Bind(core.Listeners)                               {}

func (f *fakeProvider) Publish(_ context.Context, props core.PublisherProps) (core.Publisher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishCalls++
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	n := f.publishCalls
	kind := props.Kind
	if kind == "" {
		kind = domain.KindCamera
	}
	return &fakePublisher{
		id:       fmt.Sprintf("pub-%d", n),
		streamID: domain.StreamID(fmt.Sprintf("own-%d", n)),
		kind:     kind,
	}, nil
}

func (f *fakeProvider) Unpublish(pub core.Publisher) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unpublished = append(f.unpublished, pub.ID())
	return nil
}

func (f *fakeProvider) Subscribe(_ context.Context, stream domain.Stream, _ string, opts core.SubscribeOptions) (core.Subscriber, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.subscribeErr[stream.ID]; err != nil {
		return nil, err
	}
	f.subscribeCalls = append(f.subscribeCalls, stream.ID)
	f.lastOpts = opts
	id := fmt.Sprintf("sub-%s-%d", stream.ID, len(f.subscribeCalls))
	return &fakeSubscriber{id: id, stream: stream}, nil
}

func (f *fakeProvider) Unsubscribe(sub core.Subscriber) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, sub.ID())
	return nil
}

func (f *fakeProvider) Signal(context.Context, core.SignalPayload) error      { return nil }
func (f *fakeProvider) ForceDisconnect(context.Context, string) error         { return nil }
func (f *fakeProvider) ForceUnpublish(context.Context, domain.StreamID) error { return nil }

func newTestOrch(t *testing.T, opts Options) (*Orchestrator, *fakeProvider, *events.Bus) {
	t.Helper()
	st, err := state.NewSession(domain.Credentials{APIKey: "k", SessionID: "s", Token: "t"})
	require.NoError(t, err)
	bus := events.NewBus()
	bus.Register(events.CoreEvents()...)
	provider := &fakeProvider{subscribeErr: make(map[domain.StreamID]error)}
	o := New(st, provider, bus, opts)
	return o, provider, bus
}

func countEvents(bus *events.Bus, name string, n *int) {
	bus.On(name, func(any, string) { *n++ })
}

func TestAbleToJoin(t *testing.T) {
	o, _, _ := newTestOrch(t, Options{})
	assert.True(t, o.AbleToJoin(), "no limit configured")

	o, _, _ = newTestOrch(t, Options{ConnectionLimit: 2})
	o.State.AddStream(domain.Stream{ID: "c1", VideoType: domain.KindCamera})
	assert.True(t, o.AbleToJoin())
	o.State.AddStream(domain.Stream{ID: "c2", VideoType: domain.KindCamera})
	assert.False(t, o.AbleToJoin())

	// screens never count against the limit
	o.State.RemoveStream(domain.Stream{ID: "c2", VideoType: domain.KindCamera})
	o.State.AddStream(domain.Stream{ID: "sc", VideoType: domain.KindScreen})
	assert.True(t, o.AbleToJoin())
}

func TestStartCallAdmissionRejection(t *testing.T) {
	o, provider, bus := newTestOrch(t, Options{ConnectionLimit: 1, AutoSubscribe: true})
	o.State.AddStream(domain.Stream{ID: "c1", VideoType: domain.KindCamera})

	errEvents := 0
	countEvents(bus, events.Error, &errEvents)

	_, err := o.StartCall(context.Background(), core.PublisherProps{})
	assert.ErrorIs(t, err, ErrConnectionLimit)
	assert.Zero(t, provider.publishCalls, "rejection must never reach the provider")
	assert.Equal(t, 1, errEvents)
	assert.False(t, o.Active())
}

func TestStartCallAutoSubscribesPreexistingStreams(t *testing.T) {
	o, provider, bus := newTestOrch(t, Options{AutoSubscribe: true})
	o.State.AddStream(domain.Stream{ID: "r1", VideoType: domain.KindCamera})
	o.State.AddStream(domain.Stream{ID: "r2", VideoType: domain.KindCamera})

	startEvents := 0
	countEvents(bus, events.StartCall, &startEvents)

	started, err := o.StartCall(context.Background(), core.PublisherProps{Name: "me"})
	require.NoError(t, err)
	require.NotNil(t, started.Publisher)

	assert.Equal(t, 1, provider.publishCalls)
	assert.ElementsMatch(t, []domain.StreamID{"r1", "r2"}, provider.subscribeCalls)
	assert.Equal(t, 2, started.PubSub.Subscribers.Count.Camera)
	assert.Equal(t, 1, started.PubSub.Publishers.Count.Camera)
	assert.Equal(t, 1, startEvents)
	assert.True(t, o.Active())
}

func TestStartCallSwallowsPreexistingSubscribeFailure(t *testing.T) {
	o, provider, _ := newTestOrch(t, Options{AutoSubscribe: true})
	o.State.AddStream(domain.Stream{ID: "good", VideoType: domain.KindCamera})
	o.State.AddStream(domain.Stream{ID: "bad", VideoType: domain.KindCamera})
	provider.subscribeErr["bad"] = fmt.Errorf("stream gone")

	started, err := o.StartCall(context.Background(), core.PublisherProps{})
	require.NoError(t, err, "publishing success must not be undone by a subscription failure")
	assert.Equal(t, 1, started.PubSub.Subscribers.Count.Camera)
}

func TestSubscribeIsIdempotent(t *testing.T) {
	o, provider, _ := newTestOrch(t, Options{})
	stream := domain.Stream{ID: "r1", VideoType: domain.KindCamera}
	o.State.AddStream(stream)

	first, err := o.Subscribe(context.Background(), stream, nil, false)
	require.NoError(t, err)
	second, err := o.Subscribe(context.Background(), stream, nil, false)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, provider.subscribeCalls, 1)
	assert.Equal(t, 1, o.State.GetPubSub().Subscribers.Count.Total)
}

func TestConcurrentSubscribeSharesOneAttempt(t *testing.T) {
	o, provider, _ := newTestOrch(t, Options{})
	stream := domain.Stream{ID: "r1", VideoType: domain.KindCamera}
	o.State.AddStream(stream)

	provider.entered = make(chan struct{}, 2)
	provider.block = make(chan struct{})

	results := make(chan core.Subscriber, 2)
	subscribe := func() {
		sub, err := o.Subscribe(context.Background(), stream, nil, false)
		assert.NoError(t, err)
		results <- sub
	}

	go subscribe()
	<-provider.entered // first attempt is now in flight
	go subscribe()
	close(provider.block)

	first := <-results
	second := <-results
	assert.Same(t, first, second, "both callers share the one attempt's handle")
	assert.Len(t, provider.subscribeCalls, 1, "only one attempt may reach the provider")
	assert.Equal(t, 1, o.State.GetPubSub().Subscribers.Count.Total)
}

func TestFailedSubscribeReleasesTheStream(t *testing.T) {
	o, provider, _ := newTestOrch(t, Options{})
	stream := domain.Stream{ID: "r1", VideoType: domain.KindCamera}
	o.State.AddStream(stream)

	provider.subscribeErr["r1"] = fmt.Errorf("session refused")
	_, err := o.Subscribe(context.Background(), stream, nil, false)
	require.Error(t, err)

	delete(provider.subscribeErr, "r1")
	sub, err := o.Subscribe(context.Background(), stream, nil, false)
	require.NoError(t, err, "a failed attempt must not keep the stream claimed")
	require.NotNil(t, sub)
}

func TestSubscribeNetworkTestBypassesIdempotence(t *testing.T) {
	o, provider, _ := newTestOrch(t, Options{})
	stream := domain.Stream{ID: "r1", VideoType: domain.KindCamera}
	o.State.AddStream(stream)

	_, err := o.Subscribe(context.Background(), stream, nil, false)
	require.NoError(t, err)
	_, err = o.Subscribe(context.Background(), stream, nil, true)
	require.NoError(t, err)

	assert.Len(t, provider.subscribeCalls, 2)
}

func TestSubscribeScreenEmitsLegacyEvent(t *testing.T) {
	o, _, bus := newTestOrch(t, Options{})
	stream := domain.Stream{ID: "sc", VideoType: domain.KindScreen}
	o.State.AddStream(stream)

	screenEvents, legacyEvents := 0, 0
	countEvents(bus, events.SubscribeToScreen, &screenEvents)
	countEvents(bus, events.StartViewingSharedScreen, &legacyEvents)

	_, err := o.Subscribe(context.Background(), stream, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 1, screenEvents)
	assert.Equal(t, 1, legacyEvents)
}

func TestSubscribeOverridesWinOverDefaults(t *testing.T) {
	o, provider, _ := newTestOrch(t, Options{})
	stream := domain.Stream{ID: "r1", VideoType: domain.KindCamera}
	o.State.AddStream(stream)

	_, err := o.Subscribe(context.Background(), stream, core.SubscribeOptions{"subscribeToVideo": false}, false)
	require.NoError(t, err)

	assert.Equal(t, false, provider.lastOpts["subscribeToVideo"])
	assert.Equal(t, true, provider.lastOpts["subscribeToAudio"], "untouched defaults survive")
}

func TestPublishSubscribeOnlyIsANoOp(t *testing.T) {
	o, provider, _ := newTestOrch(t, Options{SubscribeOnly: true})

	pub, err := o.Publish(context.Background(), core.PublisherProps{})
	assert.NoError(t, err)
	assert.Nil(t, pub)
	assert.Zero(t, provider.publishCalls)
}

func TestPublishTranslatesKnownProviderCode(t *testing.T) {
	o, provider, bus := newTestOrch(t, Options{})
	provider.publishErr = &core.ProviderError{Code: core.CodeConnectFailed, Msg: "ice failed"}

	var msg string
	bus.On(events.Error, func(data any, _ string) { msg, _ = data.(string) })

	_, err := o.Publish(context.Background(), core.PublisherProps{})
	require.Error(t, err)
	var perr *core.ProviderError
	assert.ErrorAs(t, err, &perr)
	assert.Contains(t, msg, "check your network connection")
}

func TestEndCallTearsEverythingDown(t *testing.T) {
	o, provider, bus := newTestOrch(t, Options{AutoSubscribe: true})
	o.State.AddStream(domain.Stream{ID: "r1", VideoType: domain.KindCamera})
	o.State.AddStream(domain.Stream{ID: "r2", VideoType: domain.KindCamera})

	endEvents := 0
	countEvents(bus, events.EndCall, &endEvents)

	_, err := o.StartCall(context.Background(), core.PublisherProps{})
	require.NoError(t, err)

	o.EndCall()

	assert.Len(t, provider.unpublished, 1)
	assert.Len(t, provider.unsubscribed, 2)
	ps := o.State.GetPubSub()
	assert.Zero(t, ps.Publishers.Count.Total)
	assert.Zero(t, ps.Subscribers.Count.Total)
	assert.False(t, o.Active())
	assert.Equal(t, 1, endEvents)
}

func TestEnableAVFailsOnStaleHandle(t *testing.T) {
	o, _, _ := newTestOrch(t, Options{})
	assert.ErrorIs(t, o.EnableLocalAV("nope", core.TrackAudio, true), ErrUnknownHandle)
	assert.ErrorIs(t, o.EnableRemoteAV("nope", core.TrackVideo, false), ErrUnknownHandle)
}

func TestEnableRemoteAVTogglesSubscriber(t *testing.T) {
	o, _, _ := newTestOrch(t, Options{})
	stream := domain.Stream{ID: "r1", VideoType: domain.KindCamera}
	o.State.AddStream(stream)

	sub, err := o.Subscribe(context.Background(), stream, nil, false)
	require.NoError(t, err)

	require.NoError(t, o.EnableRemoteAV(sub.ID(), core.TrackAudio, false))
	assert.False(t, sub.(*fakeSubscriber).audio)
}

func TestStreamCreatedReactionSubscribesDuringActiveCall(t *testing.T) {
	o, provider, bus := newTestOrch(t, Options{AutoSubscribe: true})
	o.BindSessionEvents()

	_, err := o.StartCall(context.Background(), core.PublisherProps{})
	require.NoError(t, err)

	late := domain.Stream{ID: "late", VideoType: domain.KindCamera}
	o.State.AddStream(late)
	bus.Trigger(events.StreamCreated, late)

	assert.Contains(t, provider.subscribeCalls, domain.StreamID("late"))
}

func TestStreamCreatedIgnoredWhenInactive(t *testing.T) {
	o, provider, bus := newTestOrch(t, Options{AutoSubscribe: true})
	o.BindSessionEvents()

	late := domain.Stream{ID: "late", VideoType: domain.KindCamera}
	o.State.AddStream(late)
	bus.Trigger(events.StreamCreated, late)

	assert.Empty(t, provider.subscribeCalls)
}

func TestStreamDestroyedEmitsKindSpecificEvents(t *testing.T) {
	o, _, bus := newTestOrch(t, Options{})
	o.BindSessionEvents()

	camEvents, screenEvents, legacyEvents := 0, 0, 0
	countEvents(bus, events.UnsubscribeFromCamera, &camEvents)
	countEvents(bus, events.UnsubscribeFromScreen, &screenEvents)
	countEvents(bus, events.EndViewingSharedScreen, &legacyEvents)

	bus.Trigger(events.StreamDestroyed, domain.Stream{ID: "c", VideoType: domain.KindCamera})
	bus.Trigger(events.StreamDestroyed, domain.Stream{ID: "s", VideoType: domain.KindScreen})

	assert.Equal(t, 1, camEvents)
	assert.Equal(t, 1, screenEvents)
	assert.Equal(t, 1, legacyEvents)
}
