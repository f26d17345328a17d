package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NooksApp/accelerator-core/internal/domain"
)

type fakePub struct {
	id       string
	streamID domain.StreamID
	kind     domain.Kind
}

func (p *fakePub) ID() string                { return p.id }
func (p *fakePub) StreamID() domain.StreamID { return p.streamID }
func (p *fakePub) Kind() domain.Kind         { return p.kind }
func (p *fakePub) PublishAudio(bool) error   { return nil }
func (p *fakePub) PublishVideo(bool) error   { return nil }

type fakeSub struct {
	id     string
	stream domain.Stream
}

func (s *fakeSub) ID() string                  { return s.id }
func (s *fakeSub) Stream() domain.Stream       { return s.stream }
func (s *fakeSub) SubscribeToAudio(bool) error { return nil }
func (s *fakeSub) SubscribeToVideo(bool) error { return nil }

func validCreds() domain.Credentials {
	return domain.Credentials{APIKey: "key", SessionID: "sess", Token: "tok"}
}

func TestNewSessionRequiresCredentials(t *testing.T) {
	for _, tc := range []struct {
		name  string
		creds domain.Credentials
		want  error
	}{
		{"missing api key", domain.Credentials{SessionID: "s", Token: "t"}, domain.ErrMissingAPIKey},
		{"missing session id", domain.Credentials{APIKey: "k", Token: "t"}, domain.ErrMissingSessionID},
		{"missing token", domain.Credentials{APIKey: "k", SessionID: "s"}, domain.ErrMissingToken},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSession(tc.creds)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	s, err := NewSession(validCreds())
	require.NoError(t, err)
	assert.Equal(t, validCreds(), s.Credentials())
}

func TestRemoveStreamCascadesToSubscriber(t *testing.T) {
	s, err := NewSession(validCreds())
	require.NoError(t, err)

	stream := domain.Stream{ID: "st-1", VideoType: domain.KindCamera}
	sub := &fakeSub{id: "sub-1", stream: stream}

	s.AddStream(stream)
	s.AddSubscriber(sub)

	got, ok := s.SubscriberFor(stream.ID)
	require.True(t, ok)
	assert.Equal(t, sub, got)

	s.RemoveStream(stream)

	_, ok = s.GetStream(stream.ID)
	assert.False(t, ok, "stream entry must be gone")
	_, ok = s.SubscriberFor(stream.ID)
	assert.False(t, ok, "streamMap entry must be gone")
	_, ok = s.SubscriberByID("sub-1")
	assert.False(t, ok, "subscriber registry entry must be gone")
}

func TestAddSubscriberKindFallsBackToSIP(t *testing.T) {
	s, err := NewSession(validCreds())
	require.NoError(t, err)

	// no video type reported: a SIP participant, tracked with cameras
	stream := domain.Stream{ID: "st-sip"}
	s.AddStream(stream)
	s.AddSubscriber(&fakeSub{id: "sub-sip", stream: stream})

	ps := s.GetPubSub()
	assert.Equal(t, 1, ps.Subscribers.Count.Camera)
	assert.Equal(t, 0, ps.Subscribers.Count.Screen)
}

func TestAddPublisherRecordsStreamMap(t *testing.T) {
	s, err := NewSession(validCreds())
	require.NoError(t, err)

	pub := &fakePub{id: "pub-1", streamID: "st-own", kind: domain.KindCamera}
	s.AddPublisher(pub)

	got, ok := s.PublisherByID("pub-1")
	require.True(t, ok)
	assert.Equal(t, pub, got)
	assert.Equal(t, 1, s.GetPubSub().Publishers.Count.Camera)
}

func TestCameraStreamCountIgnoresScreens(t *testing.T) {
	s, err := NewSession(validCreds())
	require.NoError(t, err)

	s.AddStream(domain.Stream{ID: "c1", VideoType: domain.KindCamera})
	s.AddStream(domain.Stream{ID: "c2"}) // SIP counts as camera
	s.AddStream(domain.Stream{ID: "sc", VideoType: domain.KindScreen})

	assert.Equal(t, 2, s.CameraStreamCount())
}

func TestResetClearsEverythingButCredentials(t *testing.T) {
	s, err := NewSession(validCreds())
	require.NoError(t, err)

	stream := domain.Stream{ID: "st-1", VideoType: domain.KindCamera}
	s.AddStream(stream)
	s.AddSubscriber(&fakeSub{id: "sub-1", stream: stream})
	s.AddPublisher(&fakePub{id: "pub-1", streamID: "st-own", kind: domain.KindCamera})
	s.SetConnected(true)

	s.Reset()

	ps := s.GetPubSub()
	assert.Zero(t, ps.Publishers.Count.Total)
	assert.Zero(t, ps.Subscribers.Count.Total)
	assert.Empty(t, s.Streams())
	_, ok := s.SubscriberFor(stream.ID)
	assert.False(t, ok)
	assert.Equal(t, validCreds(), s.Credentials())
}
