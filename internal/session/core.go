// Package session is the facade over the whole core: it wires the external
// provider's raw events into session-state mutations and bus triggers, and
// exposes the orchestrator's operations to feature modules and transports.
package session

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/NooksApp/accelerator-core/internal/app/orch"
	"github.com/NooksApp/accelerator-core/internal/config"
	"github.com/NooksApp/accelerator-core/internal/core"
	"github.com/NooksApp/accelerator-core/internal/domain"
	"github.com/NooksApp/accelerator-core/internal/events"
	"github.com/NooksApp/accelerator-core/internal/modules"
	"github.com/NooksApp/accelerator-core/internal/state"
)

// Core owns one session: its state, its event bus and its orchestrator.
// It implements modules.Capability.
type Core struct {
	state    *state.Session
	bus      *events.Bus
	orch     *orch.Orchestrator
	provider core.Provider
	mods     []modules.Module
}

// New validates credentials, constructs the state and bus, and binds the
// provider's push events. The provider is not connected yet.
func New(cfg *config.Config, provider core.Provider) (*Core, error) {
	st, err := state.NewSession(cfg.Credentials)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus()
	bus.Register(events.CoreEvents()...)

	o := orch.New(st, provider, bus, orch.Options{
		ConnectionLimit: cfg.Call.ConnectionLimit,
		AutoSubscribe:   cfg.Call.AutoSubscribe,
		SubscribeOnly:   cfg.Call.SubscribeOnly,
		Container:       cfg.Call.Container,
		ScreenContainer: cfg.Call.ScreenContainer,
	})

	c := &Core{state: st, bus: bus, orch: o, provider: provider}
	provider.Bind(core.Listeners{
		StreamCreated:       c.onStreamCreated,
		StreamDestroyed:     c.onStreamDestroyed,
		SignalReceived:      c.onSignal,
		SessionConnected:    c.onConnected,
		SessionReconnected:  c.onReconnected,
		SessionDisconnected: c.onDisconnected,
	})
	o.BindSessionEvents()
	return c, nil
}

// Use starts a feature module with this core as its capability object.
func (c *Core) Use(mod modules.Module) error {
	if err := mod.Start(c); err != nil {
		return fmt.Errorf("module %s: %w", mod.Name(), err)
	}
	c.mods = append(c.mods, mod)
	log.Info().Str("module", "session").Str("feature", mod.Name()).Msg("feature module started")
	return nil
}

func (c *Core) Connect(ctx context.Context) error {
	if err := c.provider.Connect(ctx, c.state.Credentials()); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

// Disconnect stops the feature modules and tears the provider session down.
// Registries and maps are cleared; credentials are retained.
func (c *Core) Disconnect() error {
	for _, mod := range c.mods {
		mod.Stop()
	}
	err := c.provider.Disconnect()
	c.state.Reset()
	c.state.SetConnected(false)
	c.bus.Trigger(events.Disconnected, "local")
	return err
}

// Raw provider events. Each handler mutates state first, then triggers, so
// any listener observing the event sees already-consistent state.

func (c *Core) onStreamCreated(stream domain.Stream) {
	c.state.AddStream(stream)
	c.bus.Trigger(events.StreamCreated, stream)
}

func (c *Core) onStreamDestroyed(stream domain.Stream) {
	c.state.RemoveStream(stream)
	c.bus.Trigger(events.StreamDestroyed, stream)
}

func (c *Core) onSignal(payload core.SignalPayload) {
	c.bus.Trigger(events.SignalReceived, payload)
}

func (c *Core) onConnected() {
	c.state.SetConnected(true)
	c.bus.Trigger(events.Connected, nil)
}

func (c *Core) onReconnected() {
	c.state.SetConnected(true)
	c.bus.Trigger(events.Reconnected, nil)
}

func (c *Core) onDisconnected(reason string) {
	c.state.Reset()
	c.state.SetConnected(false)
	c.bus.Trigger(events.Disconnected, reason)
}
