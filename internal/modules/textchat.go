package modules

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/NooksApp/accelerator-core/internal/core"
	"github.com/NooksApp/accelerator-core/internal/events"
)

const chatSignalType = "text-chat"

// Events registered by the text chat module.
const (
	EventMessageSent     = "messageSent"
	EventMessageReceived = "messageReceived"
)

type ChatMessage struct {
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sentAt"`
}

// TextChat relays chat messages over the session's signal primitive and
// re-emits them as bus events.
type TextChat struct {
	SenderAlias string

	cap   Capability
	token string
}

func NewTextChat(alias string) *TextChat {
	return &TextChat{SenderAlias: alias}
}

func (t *TextChat) Name() string { return "textChat" }

func (t *TextChat) Start(cap Capability) error {
	t.cap = cap
	cap.RegisterEvents(EventMessageSent, EventMessageReceived)
	t.token = cap.On(events.SignalReceived, func(data any, _ string) {
		payload, ok := data.(core.SignalPayload)
		if !ok || payload.Type != chatSignalType {
			return
		}
		var msg ChatMessage
		if err := json.Unmarshal([]byte(payload.Data), &msg); err != nil {
			log.Warn().Err(err).Str("module", "textchat").Msg("bad chat payload")
			return
		}
		cap.TriggerEvent(EventMessageReceived, msg)
	})
	return nil
}

func (t *TextChat) Stop() {
	if t.cap != nil {
		t.cap.Off(events.SignalReceived, t.token)
	}
}

// Send broadcasts a chat message to every connection in the session.
func (t *TextChat) Send(ctx context.Context, text string) error {
	msg := ChatMessage{Sender: t.SenderAlias, Text: text, SentAt: time.Now()}
	if err := t.cap.Signal(ctx, chatSignalType, msg, ""); err != nil {
		return err
	}
	t.cap.TriggerEvent(EventMessageSent, msg)
	return nil
}
