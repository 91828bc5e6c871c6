package application

import (
	"sort"
	"time"

	"etsy-sync-core/internal/domain"

	"github.com/rs/zerolog"
)

const maxStatsItems = 25

// ShopStatsView is a filtered read of the last snapshot, shaped for display.
type ShopStatsView struct {
	ShopID             int64                       `json:"shop_id"`
	ShopName           string                      `json:"shop_name"`
	Currency           string                      `json:"currency"`
	ReviewAverage      float64                     `json:"review_average"`
	ReviewCount        int                         `json:"review_count"`
	Stats              domain.ShopStats            `json:"stats"`
	TopListings        []domain.ListingSummary     `json:"top_listings,omitempty"`
	RecentTransactions []domain.TransactionSummary `json:"recent_transactions,omitempty"`
	FetchedAt          time.Time                   `json:"fetched_at"`
}

// StatsService serves snapshot-derived shop statistics. It reads whatever the
// coordinator reconciled last and never calls upstream itself.
type StatsService struct {
	coordinator *Coordinator
	logger      zerolog.Logger
}

// NewStatsService creates a new stats service.
func NewStatsService(coordinator *Coordinator, logger zerolog.Logger) *StatsService {
	return &StatsService{
		coordinator: coordinator,
		logger:      logger,
	}
}

// GetShopStats returns a filtered view of the shop's last snapshot.
// listingLimit and transactionLimit are clamped to 1..25; zero or negative
// omits that section. Returns (nil, nil) when no cycle has completed yet.
func (s *StatsService) GetShopStats(shopID int64, listingLimit, transactionLimit int) (*ShopStatsView, error) {
	snapshot := s.coordinator.LastSnapshot(shopID)
	if snapshot == nil {
		return nil, nil
	}

	view := &ShopStatsView{
		ShopID:        snapshot.ShopID,
		ShopName:      snapshot.ShopName,
		Currency:      snapshot.Currency,
		ReviewAverage: snapshot.ReviewAverage,
		ReviewCount:   snapshot.ReviewCount,
		Stats:         snapshot.Stats,
		FetchedAt:     snapshot.FetchedAt,
	}

	if listingLimit > 0 {
		view.TopListings = topListings(snapshot.Listings, clampLimit(listingLimit))
	}
	if transactionLimit > 0 {
		n := clampLimit(transactionLimit)
		if n > len(snapshot.Transactions) {
			n = len(snapshot.Transactions)
		}
		view.RecentTransactions = append([]domain.TransactionSummary(nil), snapshot.Transactions[:n]...)
	}

	return view, nil
}

// topListings returns up to n listings ordered by view count, most viewed
// first. Ties keep snapshot order.
func topListings(listings []domain.ListingSummary, n int) []domain.ListingSummary {
	sorted := append([]domain.ListingSummary(nil), listings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Views > sorted[j].Views
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

func clampLimit(n int) int {
	if n > maxStatsItems {
		return maxStatsItems
	}
	return n
}
