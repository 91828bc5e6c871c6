package event_handlers

import (
	"context"
	"fmt"

	"etsy-sync-core/internal/domain"

	"github.com/rs/zerolog"
)

// LowStockHandler handles low-stock events
type LowStockHandler struct {
	logger zerolog.Logger
}

// NewLowStockHandler creates a new low-stock event handler
func NewLowStockHandler(logger zerolog.Logger) *LowStockHandler {
	return &LowStockHandler{
		logger: logger,
	}
}

// CanHandle returns true if this handler can process the given event type
func (h *LowStockHandler) CanHandle(eventType domain.EventType) bool {
	return eventType == domain.EventLowStock
}

// Handle processes a low-stock event
func (h *LowStockHandler) Handle(ctx context.Context, event *domain.Event) error {
	listing := event.Listing
	if listing == nil {
		return fmt.Errorf("low-stock event for shop %d has no listing payload", event.ShopID)
	}

	h.logger.Warn().
		Int64("shopId", event.ShopID).
		Int64("listingId", listing.ListingID).
		Str("title", listing.Title).
		Int("quantity", listing.Quantity).
		Int("threshold", event.Threshold).
		Msg("Listing stock below threshold")

	return nil
}
