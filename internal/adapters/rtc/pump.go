package rtc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/NooksApp/accelerator-core/internal/core"
)

func webrtcCandidate(c candidateInit) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	}
}

func optBool(opts core.SubscribeOptions, key string, fallback bool) bool {
	if v, ok := opts[key].(bool); ok {
		return v
	}
	return fallback
}

func (p *Provider) enqueue(env envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("rtc: marshal envelope: %w", err)
	}
	p.mu.Lock()
	send := p.send
	p.mu.Unlock()
	if send == nil {
		return ErrNotConnected
	}
	select {
	case send <- b:
		return nil
	default:
		return ErrBackpressure
	}
}

// request sends an envelope and blocks until the matching ack arrives or the
// context ends. An unconnected or saturated provider fails immediately rather
// than waiting for a reply that cannot come. A wire error is surfaced as a
// core.ProviderError so callers can branch on known codes.
func (p *Provider) request(ctx context.Context, env envelope) (envelope, error) {
	env.RequestID = uuid.NewString()
	ch := make(chan envelope, 1)

	p.mu.Lock()
	p.pending[env.RequestID] = ch
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, env.RequestID)
		p.mu.Unlock()
	}()

	if err := p.enqueue(env); err != nil {
		return envelope{}, err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return envelope{}, &core.ProviderError{Code: resp.Error.Code, Msg: resp.Error.Message}
		}
		return resp, nil
	case <-ctx.Done():
		return envelope{}, ctx.Err()
	}
}

func (p *Provider) writePump(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-p.sendChan():
			if !ok {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				log.Error().Err(err).Str("module", "rtc").Msg("writePump set deadline")
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "rtc").Msg("writePump write error")
				return
			}
		}
	}
}

func (p *Provider) sendChan() chan []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.send
}

func (p *Provider) readPump(conn *websocket.Conn) {
	defer func() {
		p.mu.Lock()
		ls := p.listeners
		wasConnected := p.connected
		p.mu.Unlock()
		p.teardown()
		if wasConnected && ls.SessionDisconnected != nil {
			ls.SessionDisconnected("networkDisconnected")
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Str("module", "rtc").Msg("readPump closing")
			return
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Error().Err(err).Str("module", "rtc").Msg("bad envelope")
			continue
		}
		p.dispatch(env)
	}
}

func (p *Provider) dispatch(env envelope) {
	if env.RequestID != "" {
		p.mu.Lock()
		ch, ok := p.pending[env.RequestID]
		p.mu.Unlock()
		if ok {
			ch <- env
		}
		return
	}

	p.mu.Lock()
	ls := p.listeners
	peer := p.peer
	p.mu.Unlock()

	switch env.Type {
	case "streamCreated":
		if env.Stream != nil && ls.StreamCreated != nil {
			ls.StreamCreated(*env.Stream)
		}
	case "streamDestroyed":
		if env.Stream != nil && ls.StreamDestroyed != nil {
			ls.StreamDestroyed(*env.Stream)
		}
	case "signal":
		if env.Signal != nil && ls.SignalReceived != nil {
			ls.SignalReceived(*env.Signal)
		}
	case "reconnected":
		if ls.SessionReconnected != nil {
			ls.SessionReconnected()
		}
	case "disconnected":
		p.teardown()
		if ls.SessionDisconnected != nil {
			ls.SessionDisconnected(env.Reason)
		}
	case "offer":
		if peer == nil {
			return
		}
		answer, err := peer.answerOffer(env.SDP)
		if err != nil {
			log.Error().Err(err).Str("module", "rtc").Msg("answer offer")
			return
		}
		if err := p.enqueue(envelope{Type: "answer", SDP: answer.SDP}); err != nil {
			log.Warn().Err(err).Str("module", "rtc").Msg("answer dropped")
		}
	case "candidate":
		if peer == nil || env.Candidate == nil {
			return
		}
		ci := webrtcCandidate(*env.Candidate)
		if err := peer.addICECandidate(ci); err != nil {
			log.Error().Err(err).Str("module", "rtc").Msg("add ice candidate")
		}
	default:
		log.Warn().Str("module", "rtc").Str("type", env.Type).Msg("unknown envelope")
	}
}
