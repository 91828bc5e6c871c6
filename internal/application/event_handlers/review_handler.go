package event_handlers

import (
	"context"
	"fmt"

	"etsy-sync-core/internal/domain"

	"github.com/rs/zerolog"
)

// ReviewHandler handles new-review events
type ReviewHandler struct {
	logger zerolog.Logger
}

// NewReviewHandler creates a new review event handler
func NewReviewHandler(logger zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{
		logger: logger,
	}
}

// CanHandle returns true if this handler can process the given event type
func (h *ReviewHandler) CanHandle(eventType domain.EventType) bool {
	return eventType == domain.EventNewReview
}

// Handle processes a new-review event
func (h *ReviewHandler) Handle(ctx context.Context, event *domain.Event) error {
	review := event.Review
	if review == nil {
		return fmt.Errorf("new-review event for shop %d has no review payload", event.ShopID)
	}

	text := review.Text
	if len(text) > 120 {
		text = text[:120] + "..."
	}

	h.logger.Info().
		Int64("shopId", event.ShopID).
		Int64("reviewId", review.ReviewID).
		Int("rating", review.Rating).
		Str("text", text).
		Msg("New review received")

	return nil
}
