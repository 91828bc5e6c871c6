package domain

import "time"

// EventType discriminates the change event variants.
type EventType string

const (
	EventNewOrder  EventType = "new_order"
	EventNewReview EventType = "new_review"
	EventLowStock  EventType = "low_stock"
)

// Event is a discrete change derived by reconciliation. Exactly one of the
// payload pointers is set, matching Type. Events are ephemeral: they are
// delivered to subscribers and never stored.
type Event struct {
	Type        EventType           `json:"type"`
	ShopID      int64               `json:"shop_id"`
	Transaction *TransactionSummary `json:"transaction,omitempty"`
	Review      *ReviewSummary      `json:"review,omitempty"`
	Listing     *ListingSummary     `json:"listing,omitempty"`
	Threshold   int                 `json:"threshold,omitempty"`
	OccurredAt  time.Time           `json:"occurred_at"`
}

// NewOrderEvent builds a NewOrder event for one transaction.
func NewOrderEvent(shopID int64, t TransactionSummary, at time.Time) Event {
	return Event{Type: EventNewOrder, ShopID: shopID, Transaction: &t, OccurredAt: at}
}

// NewReviewEvent builds a NewReview event for one review.
func NewReviewEvent(shopID int64, r ReviewSummary, at time.Time) Event {
	return Event{Type: EventNewReview, ShopID: shopID, Review: &r, OccurredAt: at}
}

// NewLowStockEvent builds a LowStock event for one listing crossing the threshold.
func NewLowStockEvent(shopID int64, l ListingSummary, threshold int, at time.Time) Event {
	return Event{Type: EventLowStock, ShopID: shopID, Listing: &l, Threshold: threshold, OccurredAt: at}
}
