package application

import (
	"context"
	"fmt"
	"time"

	"etsy-sync-core/internal/domain"
	"etsy-sync-core/internal/ports"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// SnapshotBuilder assembles a consistent view of a shop from the upstream
// API: shop info, active listings, recent transactions and recent reviews
// are fetched concurrently and combined into a single snapshot. Any fetch
// failure fails the whole build; partial snapshots are never produced.
type SnapshotBuilder struct {
	client     ports.ShopAPIClient
	fetchLimit int
	logger     zerolog.Logger
}

// NewSnapshotBuilder creates a new snapshot builder. fetchLimit bounds the
// number of listings, transactions and reviews requested per cycle.
func NewSnapshotBuilder(client ports.ShopAPIClient, fetchLimit int, logger zerolog.Logger) *SnapshotBuilder {
	return &SnapshotBuilder{
		client:     client,
		fetchLimit: fetchLimit,
		logger:     logger,
	}
}

// Build fetches all shop resources and assembles them into a snapshot.
func (b *SnapshotBuilder) Build(ctx context.Context, shopID int64) (*domain.ShopSnapshot, error) {
	var (
		info         *domain.ShopInfo
		listings     []domain.ListingSummary
		transactions []domain.TransactionSummary
		reviews      []domain.ReviewSummary
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		info, err = b.client.FetchShop(gctx, shopID)
		return err
	})
	g.Go(func() error {
		var err error
		listings, err = b.client.FetchListings(gctx, shopID, b.fetchLimit)
		return err
	})
	g.Go(func() error {
		var err error
		transactions, err = b.client.FetchTransactions(gctx, shopID, b.fetchLimit)
		return err
	})
	g.Go(func() error {
		var err error
		reviews, err = b.client.FetchReviews(gctx, shopID, b.fetchLimit)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build snapshot for shop %d: %w", shopID, err)
	}

	snapshot := &domain.ShopSnapshot{
		ShopID:        shopID,
		ShopName:      info.ShopName,
		Currency:      info.Currency,
		CreatedAt:     info.CreatedAt,
		Announcement:  info.Announcement,
		SaleMessage:   info.SaleMessage,
		ReviewAverage: info.ReviewAverage,
		ReviewCount:   info.ReviewCount,
		Listings:      listings,
		Transactions:  transactions,
		Reviews:       reviews,
		Stats:         deriveStats(info, listings, transactions),
		FetchedAt:     time.Now(),
	}

	b.logger.Debug().
		Int64("shopId", shopID).
		Int("listings", len(listings)).
		Int("transactions", len(transactions)).
		Int("reviews", len(reviews)).
		Msg("Snapshot assembled")

	return snapshot, nil
}

// deriveStats computes aggregate shop statistics from the fetched resources.
// TotalSales is the lifetime figure reported by the shop itself; the view,
// favorite and revenue sums cover only the fetched window.
func deriveStats(info *domain.ShopInfo, listings []domain.ListingSummary, transactions []domain.TransactionSummary) domain.ShopStats {
	stats := domain.ShopStats{
		TotalSales: info.TransactionSoldCount,
	}
	for _, listing := range listings {
		stats.TotalViews += listing.Views
		stats.TotalFavorites += listing.Favorites
	}
	for _, tx := range transactions {
		stats.Revenue += tx.Amount
	}
	return stats
}
