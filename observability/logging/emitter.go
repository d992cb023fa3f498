package logging

import (
	"log/slog"

	"swapvault/core/events"
	"swapvault/core/types"
)

// EventEmitter forwards engine events to a structured logger so every escrow
// transition leaves an audit line even without an external subscriber.
type EventEmitter struct {
	logger *slog.Logger
}

// NewEventEmitter wraps the supplied logger; a nil logger falls back to the
// process default.
func NewEventEmitter(logger *slog.Logger) *EventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventEmitter{logger: logger}
}

type payloadEvent interface {
	Event() *types.Event
}

// Emit implements events.Emitter.
func (e *EventEmitter) Emit(evt events.Event) {
	if e == nil || evt == nil {
		return
	}
	args := []any{slog.String("event", evt.EventType())}
	if carrier, ok := evt.(payloadEvent); ok {
		if payload := carrier.Event(); payload != nil {
			for k, v := range payload.Attributes {
				args = append(args, slog.String(k, v))
			}
		}
	}
	e.logger.Info("escrow event", args...)
}
