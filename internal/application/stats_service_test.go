package application

import (
	"fmt"
	"testing"
	"time"

	"etsy-sync-core/internal/domain"
	"etsy-sync-core/internal/infrastructure/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStatsService runs one cycle delivering snap, then serves stats from it.
func newStatsService(t *testing.T, snap *domain.ShopSnapshot) *StatsService {
	t.Helper()

	builder := &stubBuilder{buildFunc: func(call int, shopID int64) (*domain.ShopSnapshot, error) {
		return snap, nil
	}}
	coord := NewCoordinator(builder, &captureBus{}, repository.NewMemoryRegistrationRepository(), zerolog.Nop())
	t.Cleanup(coord.Stop)

	coord.StartCycle(syncRegistration(snap.ShopID, 3))
	require.Eventually(t, func() bool { return coord.LastSnapshot(snap.ShopID) != nil }, 2*time.Second, 10*time.Millisecond)

	return NewStatsService(coord, zerolog.Nop())
}

// TestStatsService_NoSnapshotYet tests that an unmonitored shop yields no
// view and no error.
func TestStatsService_NoSnapshotYet(t *testing.T) {
	coord := NewCoordinator(&stubBuilder{}, &captureBus{}, repository.NewMemoryRegistrationRepository(), zerolog.Nop())
	service := NewStatsService(coord, zerolog.Nop())

	view, err := service.GetShopStats(999, 5, 10)
	require.NoError(t, err)
	assert.Nil(t, view)
}

// TestStatsService_View tests field projection, top-listing ordering and the
// transaction window.
func TestStatsService_View(t *testing.T) {
	snap := testSnapshot([]int64{1001, 1002, 1003}, nil, nil)
	snap.Listings = []domain.ListingSummary{
		{ListingID: 1, Title: "Mug", Views: 10},
		{ListingID: 2, Title: "Vase", Views: 40},
		{ListingID: 3, Title: "Bowl", Views: 25},
	}
	snap.ReviewAverage = 4.9
	snap.ReviewCount = 88
	snap.Stats = domain.ShopStats{TotalSales: 1234, TotalViews: 75, Revenue: 73.50}

	service := newStatsService(t, snap)

	view, err := service.GetShopStats(testShopID, 2, 2)
	require.NoError(t, err)
	require.NotNil(t, view)

	assert.Equal(t, testShopID, view.ShopID)
	assert.Equal(t, "CeramicsByMaria", view.ShopName)
	assert.Equal(t, 4.9, view.ReviewAverage)
	assert.Equal(t, 88, view.ReviewCount)
	assert.Equal(t, snap.Stats, view.Stats)
	assert.Equal(t, snap.FetchedAt, view.FetchedAt)

	require.Len(t, view.TopListings, 2)
	assert.Equal(t, int64(2), view.TopListings[0].ListingID)
	assert.Equal(t, int64(3), view.TopListings[1].ListingID)

	require.Len(t, view.RecentTransactions, 2)
	assert.Equal(t, int64(1001), view.RecentTransactions[0].TransactionID)
	assert.Equal(t, int64(1002), view.RecentTransactions[1].TransactionID)
}

// TestStatsService_TopListingTies tests that equal view counts keep snapshot
// order.
func TestStatsService_TopListingTies(t *testing.T) {
	snap := testSnapshot(nil, nil, nil)
	snap.Listings = []domain.ListingSummary{
		{ListingID: 1, Views: 25},
		{ListingID: 2, Views: 40},
		{ListingID: 3, Views: 25},
	}

	service := newStatsService(t, snap)

	view, err := service.GetShopStats(testShopID, 3, 0)
	require.NoError(t, err)
	require.Len(t, view.TopListings, 3)
	assert.Equal(t, int64(2), view.TopListings[0].ListingID)
	assert.Equal(t, int64(1), view.TopListings[1].ListingID)
	assert.Equal(t, int64(3), view.TopListings[2].ListingID)
}

// TestStatsService_ZeroLimitOmitsSection tests that zero or negative limits
// drop the corresponding section.
func TestStatsService_ZeroLimitOmitsSection(t *testing.T) {
	snap := testSnapshot([]int64{1001}, nil, []domain.ListingSummary{listing(9001, 5)})

	service := newStatsService(t, snap)

	view, err := service.GetShopStats(testShopID, 0, -1)
	require.NoError(t, err)
	assert.Nil(t, view.TopListings)
	assert.Nil(t, view.RecentTransactions)
}

// TestStatsService_ClampsLimits tests the 25-item cap on both sections.
func TestStatsService_ClampsLimits(t *testing.T) {
	var txIDs []int64
	for i := int64(1); i <= 30; i++ {
		txIDs = append(txIDs, 1000+i)
	}
	snap := testSnapshot(txIDs, nil, nil)
	for i := 0; i < 30; i++ {
		snap.Listings = append(snap.Listings, domain.ListingSummary{
			ListingID: int64(9000 + i),
			Title:     fmt.Sprintf("Listing %d", i),
			Views:     i,
		})
	}

	service := newStatsService(t, snap)

	view, err := service.GetShopStats(testShopID, 100, 100)
	require.NoError(t, err)
	assert.Len(t, view.TopListings, 25)
	assert.Len(t, view.RecentTransactions, 25)
	// Most viewed listing first.
	assert.Equal(t, 29, view.TopListings[0].Views)
}
