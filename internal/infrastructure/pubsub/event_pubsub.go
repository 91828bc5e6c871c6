package pubsub

import (
	"context"
	"fmt"
	"sync"

	"etsy-sync-core/internal/domain"

	"github.com/rs/zerolog"
)

// EventChannel represents an event subscription.
type EventChannel struct {
	ID     string
	Filter *EventFilter
	Events chan *domain.Event
	Done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// SnapshotChannel represents a snapshot subscription.
type SnapshotChannel struct {
	ID        string
	ShopID    int64 // 0 subscribes to every shop
	Snapshots chan *domain.ShopSnapshot
	Done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
}

// EventFilter filters delivered events.
type EventFilter struct {
	Types  []domain.EventType // Filter by event types
	ShopID int64              // Filter by shop, 0 matches all
}

// SyncPubSub fans reconciliation output out to subscribers: one snapshot per
// successful cycle plus each derived event, in emission order. Delivery is
// non-blocking; a subscriber that stops draining loses messages rather than
// stalling the publisher.
type SyncPubSub struct {
	mu        sync.RWMutex
	events    map[string]*EventChannel
	snapshots map[string]*SnapshotChannel
	logger    zerolog.Logger
	nextID    int64
	idMu      sync.Mutex
}

// NewSyncPubSub creates a new pub/sub fan-out.
func NewSyncPubSub(logger zerolog.Logger) *SyncPubSub {
	return &SyncPubSub{
		events:    make(map[string]*EventChannel),
		snapshots: make(map[string]*SnapshotChannel),
		logger:    logger,
	}
}

// SubscribeEvents creates a new event subscription channel.
func (ps *SyncPubSub) SubscribeEvents(ctx context.Context, filter *EventFilter) *EventChannel {
	ps.idMu.Lock()
	id := ps.generateID()
	ps.idMu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)

	channel := &EventChannel{
		ID:     id,
		Filter: filter,
		Events: make(chan *domain.Event, 10),
		Done:   make(chan struct{}),
		ctx:    subCtx,
		cancel: cancel,
	}

	ps.mu.Lock()
	ps.events[id] = channel
	ps.mu.Unlock()

	ps.logger.Info().
		Str("channelId", id).
		Interface("filter", filter).
		Msg("Event subscription created")

	// Cleanup when context is cancelled
	go func() {
		<-subCtx.Done()
		ps.UnsubscribeEvents(id)
	}()

	return channel
}

// UnsubscribeEvents removes an event subscription channel.
func (ps *SyncPubSub) UnsubscribeEvents(channelID string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	channel, exists := ps.events[channelID]
	if !exists {
		return
	}

	close(channel.Events)
	close(channel.Done)
	channel.cancel()
	delete(ps.events, channelID)

	ps.logger.Info().
		Str("channelId", channelID).
		Msg("Event subscription removed")
}

// SubscribeSnapshots creates a new snapshot subscription channel. shopID 0
// subscribes to every shop.
func (ps *SyncPubSub) SubscribeSnapshots(ctx context.Context, shopID int64) *SnapshotChannel {
	ps.idMu.Lock()
	id := ps.generateID()
	ps.idMu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)

	channel := &SnapshotChannel{
		ID:        id,
		ShopID:    shopID,
		Snapshots: make(chan *domain.ShopSnapshot, 10),
		Done:      make(chan struct{}),
		ctx:       subCtx,
		cancel:    cancel,
	}

	ps.mu.Lock()
	ps.snapshots[id] = channel
	ps.mu.Unlock()

	ps.logger.Info().
		Str("channelId", id).
		Int64("shopId", shopID).
		Msg("Snapshot subscription created")

	go func() {
		<-subCtx.Done()
		ps.UnsubscribeSnapshots(id)
	}()

	return channel
}

// UnsubscribeSnapshots removes a snapshot subscription channel.
func (ps *SyncPubSub) UnsubscribeSnapshots(channelID string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	channel, exists := ps.snapshots[channelID]
	if !exists {
		return
	}

	close(channel.Snapshots)
	close(channel.Done)
	channel.cancel()
	delete(ps.snapshots, channelID)

	ps.logger.Info().
		Str("channelId", channelID).
		Msg("Snapshot subscription removed")
}

// PublishEvent broadcasts a change event to all matching subscribers.
func (ps *SyncPubSub) PublishEvent(event *domain.Event) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	publishedCount := 0
	for _, channel := range ps.events {
		if !ps.matchesFilter(event, channel.Filter) {
			continue
		}
		select {
		case channel.Events <- event:
			publishedCount++
		case <-channel.ctx.Done():
			// Channel is closed, skip
		default:
			// Channel buffer full, skip (non-blocking)
			ps.logger.Warn().
				Str("channelId", channel.ID).
				Msg("Channel buffer full, dropping event")
		}
	}

	if publishedCount > 0 {
		ps.logger.Debug().
			Str("type", string(event.Type)).
			Int64("shopId", event.ShopID).
			Int("subscribers", publishedCount).
			Msg("Published event to subscribers")
	}
}

// PublishSnapshot broadcasts a snapshot to all matching subscribers.
func (ps *SyncPubSub) PublishSnapshot(snapshot *domain.ShopSnapshot) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, channel := range ps.snapshots {
		if channel.ShopID != 0 && channel.ShopID != snapshot.ShopID {
			continue
		}
		select {
		case channel.Snapshots <- snapshot:
		case <-channel.ctx.Done():
		default:
			ps.logger.Warn().
				Str("channelId", channel.ID).
				Msg("Channel buffer full, dropping snapshot")
		}
	}
}

// matchesFilter checks if an event matches the subscription filter.
func (ps *SyncPubSub) matchesFilter(event *domain.Event, filter *EventFilter) bool {
	if filter == nil {
		return true // No filter, match all
	}

	if len(filter.Types) > 0 {
		typeMatch := false
		for _, t := range filter.Types {
			if event.Type == t {
				typeMatch = true
				break
			}
		}
		if !typeMatch {
			return false
		}
	}

	if filter.ShopID != 0 && event.ShopID != filter.ShopID {
		return false
	}

	return true
}

// generateID generates a unique channel ID.
func (ps *SyncPubSub) generateID() string {
	ps.nextID++
	return fmt.Sprintf("channel-%d", ps.nextID)
}

// GetStats returns pub/sub statistics.
func (ps *SyncPubSub) GetStats() map[string]interface{} {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return map[string]interface{}{
		"event_subscriptions":    len(ps.events),
		"snapshot_subscriptions": len(ps.snapshots),
	}
}
