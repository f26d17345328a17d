package core

import "github.com/NooksApp/accelerator-core/internal/domain"

// Track selects the audio or video half of a handle.
type Track string

const (
	TrackAudio Track = "audio"
	TrackVideo Track = "video"
)

// Publisher is a local handle representing an outgoing media stream.
type Publisher interface {
	ID() string
	StreamID() domain.StreamID
	Kind() domain.Kind
	PublishAudio(enabled bool) error
	PublishVideo(enabled bool) error
}

// Subscriber is a local handle representing a rendering of one incoming
// remote media stream.
type Subscriber interface {
	ID() string
	Stream() domain.Stream
	SubscribeToAudio(enabled bool) error
	SubscribeToVideo(enabled bool) error
}
