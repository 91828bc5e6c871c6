package ports

import (
	"context"

	"etsy-sync-core/internal/domain"
)

// EventBus is the publish side of the subscription stream: one snapshot per
// successful cycle plus each derived event, in emission order.
type EventBus interface {
	PublishSnapshot(snapshot *domain.ShopSnapshot)
	PublishEvent(event *domain.Event)
}

// SnapshotBuilder assembles a normalized snapshot for one poll cycle.
// It fails fast: a partial snapshot is never returned.
type SnapshotBuilder interface {
	Build(ctx context.Context, shopID int64) (*domain.ShopSnapshot, error)
}
