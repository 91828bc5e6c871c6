package application

import (
	"context"

	"etsy-sync-core/internal/domain"

	"github.com/rs/zerolog"
)

// EventHandler processes one change event type.
type EventHandler interface {
	CanHandle(eventType domain.EventType) bool
	Handle(ctx context.Context, event *domain.Event) error
}

// EventDispatcher routes change events to registered handlers.
type EventDispatcher struct {
	handlers []EventHandler
	logger   zerolog.Logger
}

// NewEventDispatcher creates a new event dispatcher.
func NewEventDispatcher(logger zerolog.Logger) *EventDispatcher {
	return &EventDispatcher{
		logger: logger,
	}
}

// RegisterHandler adds a handler to the dispatch chain.
func (d *EventDispatcher) RegisterHandler(handler EventHandler) {
	d.handlers = append(d.handlers, handler)
}

// Dispatch routes an event to every handler that accepts its type. All
// matching handlers run even when one fails; the last failure is returned.
func (d *EventDispatcher) Dispatch(ctx context.Context, event *domain.Event) error {
	var lastErr error
	handled := false

	for _, handler := range d.handlers {
		if !handler.CanHandle(event.Type) {
			continue
		}
		handled = true
		if err := handler.Handle(ctx, event); err != nil {
			d.logger.Error().
				Err(err).
				Str("type", string(event.Type)).
				Int64("shopId", event.ShopID).
				Msg("Event handler failed")
			lastErr = err
		}
	}

	if !handled {
		d.logger.Debug().
			Str("type", string(event.Type)).
			Msg("No handler registered for event type")
	}

	return lastErr
}
