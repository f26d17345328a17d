package domain

type StreamID string

// Stream is a network-level media source known to the session,
// irrespective of whether a local subscriber exists for it.
type Stream struct {
	ID             StreamID `json:"id"`
	Name           string   `json:"name"`
	VideoType      Kind     `json:"videoType,omitempty"` // empty for SIP participants
	ConnectionID   string   `json:"connectionId"`
	ConnectionData string   `json:"connectionData,omitempty"`
	HasAudio       bool     `json:"hasAudio"`
	HasVideo       bool     `json:"hasVideo"`
}

// Kind resolves the media category, defaulting to sip when the stream
// reports no explicit video type.
func (s Stream) Kind() Kind {
	if s.VideoType == "" {
		return KindSIP
	}
	return s.VideoType
}
