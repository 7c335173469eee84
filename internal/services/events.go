package services

import (
	"context"
	"log/slog"

	"financefam/internal/core"
)

// Publisher delivers ledger events to other systems.
type Publisher interface {
	Publish(ctx context.Context, ev core.Event) error
}

// publish never fails the caller: the state change is already stored.
func publish(ctx context.Context, p Publisher, ev core.Event) {
	if p == nil {
		slog.DebugContext(ctx, "Event publisher not configured, skipping event", "component", "amqp", "type", ev.Type)
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		slog.WarnContext(ctx, "Failed to publish event",
			"component", "amqp",
			"type", ev.Type,
			"entity_id", ev.EntityID,
			"error", err)
	}
}
