package state

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/NooksApp/accelerator-core/internal/core"
	"github.com/NooksApp/accelerator-core/internal/domain"
)

// PubSub is a snapshot of both registries plus their counts.
type PubSub struct {
	Publishers  View[core.Publisher]  `json:"publishers"`
	Subscribers View[core.Subscriber] `json:"subscribers"`
}

// Session owns all mutable per-session state: the publisher and subscriber
// registries, the set of known streams and the stream-to-handle map used to
// detect "already subscribed". One Session exists per session core instance;
// collaborators mutate it only through these operations.
type Session struct {
	publishers  *Registry[core.Publisher]
	subscribers *Registry[core.Subscriber]

	mu        sync.RWMutex
	streams   map[domain.StreamID]domain.Stream
	streamMap map[domain.StreamID]string // network stream -> local handle id
	connected bool
	creds     domain.Credentials
}

// NewSession validates the credentials and constructs empty registries.
// Missing credential fields are a configuration error, never retried.
func NewSession(creds domain.Credentials) (*Session, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		publishers:  NewRegistry[core.Publisher](),
		subscribers: NewRegistry[core.Subscriber](),
		streams:     make(map[domain.StreamID]domain.Stream),
		streamMap:   make(map[domain.StreamID]string),
		creds:       creds,
	}, nil
}

func (s *Session) Credentials() domain.Credentials { return s.creds }

func (s *Session) SetConnected(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = v
}

func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Session) AddPublisher(pub core.Publisher) {
	s.publishers.Add(pub.Kind(), pub.ID(), pub)
	s.mu.Lock()
	s.streamMap[pub.StreamID()] = pub.ID()
	s.mu.Unlock()
	log.Debug().Str("module", "state").Str("publisher", pub.ID()).Str("stream", string(pub.StreamID())).Msg("publisher added")
}

func (s *Session) RemovePublisher(pub core.Publisher) {
	s.publishers.Remove(pub.Kind(), pub.ID())
	log.Debug().Str("module", "state").Str("publisher", pub.ID()).Msg("publisher removed")
}

// ResetPublishers clears the publisher registry without touching subscribers.
func (s *Session) ResetPublishers() {
	s.publishers.Reset()
}

// AddSubscriber records the subscriber under the kind derived from its
// stream and maps the stream to the handle so later subscribe attempts
// resolve idempotently.
func (s *Session) AddSubscriber(sub core.Subscriber) {
	stream := sub.Stream()
	s.subscribers.Add(stream.Kind(), sub.ID(), sub)
	s.mu.Lock()
	s.streamMap[stream.ID] = sub.ID()
	s.mu.Unlock()
	log.Debug().Str("module", "state").Str("subscriber", sub.ID()).Str("stream", string(stream.ID)).Msg("subscriber added")
}

// RemoveSubscriber deletes the registry entry only; the streamMap entry is
// cleared by RemoveStream.
func (s *Session) RemoveSubscriber(sub core.Subscriber) {
	s.subscribers.Remove(sub.Stream().Kind(), sub.ID())
	log.Debug().Str("module", "state").Str("subscriber", sub.ID()).Msg("subscriber removed")
}

func (s *Session) AddStream(stream domain.Stream) {
	s.mu.Lock()
	s.streams[stream.ID] = stream
	s.mu.Unlock()
	log.Debug().Str("module", "state").Str("stream", string(stream.ID)).Str("kind", string(stream.Kind())).Msg("stream added")
}

// RemoveStream deletes the stream and cascades: the streamMap entry and the
// mapped subscriber, if any, are removed as well. This is what prevents
// orphaned subscriber handles when a remote party leaves.
func (s *Session) RemoveStream(stream domain.Stream) {
	s.mu.Lock()
	handleID, mapped := s.streamMap[stream.ID]
	delete(s.streamMap, stream.ID)
	delete(s.streams, stream.ID)
	s.mu.Unlock()

	if mapped {
		s.subscribers.Remove(stream.Kind(), handleID)
	}
	log.Debug().Str("module", "state").Str("stream", string(stream.ID)).Bool("had_subscriber", mapped).Msg("stream removed")
}

func (s *Session) GetStream(id domain.StreamID) (domain.Stream, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stream, ok := s.streams[id]
	return stream, ok
}

// Streams returns a copy of all streams known to the session.
func (s *Session) Streams() []domain.Stream {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Stream, 0, len(s.streams))
	for _, stream := range s.streams {
		out = append(out, stream)
	}
	return out
}

// CameraStreamCount counts streams whose kind maps to the camera slot,
// across the whole session. Used by admission control.
func (s *Session) CameraStreamCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, stream := range s.streams {
		if stream.Kind().Slot() == domain.KindCamera {
			n++
		}
	}
	return n
}

// SubscriberFor resolves the local subscriber for a network stream, if one
// exists.
func (s *Session) SubscriberFor(id domain.StreamID) (core.Subscriber, bool) {
	s.mu.RLock()
	handleID, ok := s.streamMap[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return s.subscribers.Lookup(handleID)
}

// PublisherByID searches both kinds for a tracked publisher handle.
func (s *Session) PublisherByID(id string) (core.Publisher, bool) {
	return s.publishers.Lookup(id)
}

// SubscriberByID searches both kinds for a tracked subscriber handle.
func (s *Session) SubscriberByID(id string) (core.Subscriber, bool) {
	return s.subscribers.Lookup(id)
}

// GetPubSub snapshots both registries. The returned structure is a copy;
// structural mutation must go through the Session operations.
func (s *Session) GetPubSub() PubSub {
	return PubSub{
		Publishers:  s.publishers.Snapshot(),
		Subscribers: s.subscribers.Snapshot(),
	}
}

// Reset clears registries and maps but retains credentials and connection
// metadata owned by the provider.
func (s *Session) Reset() {
	s.publishers.Reset()
	s.subscribers.Reset()
	s.mu.Lock()
	s.streams = make(map[domain.StreamID]domain.Stream)
	s.streamMap = make(map[domain.StreamID]string)
	s.mu.Unlock()
	log.Debug().Str("module", "state").Msg("session state reset")
}
