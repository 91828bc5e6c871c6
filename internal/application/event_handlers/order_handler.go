package event_handlers

import (
	"context"
	"fmt"

	"etsy-sync-core/internal/domain"

	"github.com/rs/zerolog"
)

// OrderHandler handles new-order events
type OrderHandler struct {
	logger zerolog.Logger
}

// NewOrderHandler creates a new order event handler
func NewOrderHandler(logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		logger: logger,
	}
}

// CanHandle returns true if this handler can process the given event type
func (h *OrderHandler) CanHandle(eventType domain.EventType) bool {
	return eventType == domain.EventNewOrder
}

// Handle processes a new-order event
func (h *OrderHandler) Handle(ctx context.Context, event *domain.Event) error {
	tx := event.Transaction
	if tx == nil {
		return fmt.Errorf("new-order event for shop %d has no transaction payload", event.ShopID)
	}

	h.logger.Info().
		Int64("shopId", event.ShopID).
		Int64("transactionId", tx.TransactionID).
		Str("title", tx.Title).
		Str("buyer", tx.BuyerName).
		Int("quantity", tx.Quantity).
		Float64("amount", tx.Amount).
		Msg("New order received")

	return nil
}
