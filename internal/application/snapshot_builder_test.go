package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"etsy-sync-core/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockShopAPIClient implements ports.ShopAPIClient with function fields.
type mockShopAPIClient struct {
	fetchShopFunc         func(ctx context.Context, shopID int64) (*domain.ShopInfo, error)
	fetchListingsFunc     func(ctx context.Context, shopID int64, limit int) ([]domain.ListingSummary, error)
	fetchTransactionsFunc func(ctx context.Context, shopID int64, limit int) ([]domain.TransactionSummary, error)
	fetchReviewsFunc      func(ctx context.Context, shopID int64, limit int) ([]domain.ReviewSummary, error)
}

func (m *mockShopAPIClient) FetchShop(ctx context.Context, shopID int64) (*domain.ShopInfo, error) {
	return m.fetchShopFunc(ctx, shopID)
}

func (m *mockShopAPIClient) FetchListings(ctx context.Context, shopID int64, limit int) ([]domain.ListingSummary, error) {
	return m.fetchListingsFunc(ctx, shopID, limit)
}

func (m *mockShopAPIClient) FetchTransactions(ctx context.Context, shopID int64, limit int) ([]domain.TransactionSummary, error) {
	return m.fetchTransactionsFunc(ctx, shopID, limit)
}

func (m *mockShopAPIClient) FetchReviews(ctx context.Context, shopID int64, limit int) ([]domain.ReviewSummary, error) {
	return m.fetchReviewsFunc(ctx, shopID, limit)
}

func healthyMockClient() *mockShopAPIClient {
	return &mockShopAPIClient{
		fetchShopFunc: func(ctx context.Context, shopID int64) (*domain.ShopInfo, error) {
			return &domain.ShopInfo{
				ShopID:               shopID,
				ShopName:             "CeramicsByMaria",
				Currency:             "USD",
				TransactionSoldCount: 1234,
				ReviewAverage:        4.87,
				ReviewCount:          211,
			}, nil
		},
		fetchListingsFunc: func(ctx context.Context, shopID int64, limit int) ([]domain.ListingSummary, error) {
			return []domain.ListingSummary{
				{ListingID: 9001, Quantity: 4, Views: 300, Favorites: 40, Price: 18.50},
				{ListingID: 9002, Quantity: 12, Views: 120, Favorites: 15, Price: 24.00},
			}, nil
		},
		fetchTransactionsFunc: func(ctx context.Context, shopID int64, limit int) ([]domain.TransactionSummary, error) {
			return []domain.TransactionSummary{
				{TransactionID: 1002, Amount: 37.00},
				{TransactionID: 1001, Amount: 18.50},
			}, nil
		},
		fetchReviewsFunc: func(ctx context.Context, shopID int64, limit int) ([]domain.ReviewSummary, error) {
			return []domain.ReviewSummary{{ReviewID: 1001, Rating: 5}}, nil
		},
	}
}

// TestSnapshotBuilder_Build tests that all four resources land in one
// snapshot with derived stats.
func TestSnapshotBuilder_Build(t *testing.T) {
	builder := NewSnapshotBuilder(healthyMockClient(), 10, zerolog.Nop())

	snapshot, err := builder.Build(context.Background(), 501)
	require.NoError(t, err)

	assert.Equal(t, int64(501), snapshot.ShopID)
	assert.Equal(t, "CeramicsByMaria", snapshot.ShopName)
	assert.Equal(t, "USD", snapshot.Currency)
	assert.Equal(t, 4.87, snapshot.ReviewAverage)
	assert.Len(t, snapshot.Listings, 2)
	assert.Len(t, snapshot.Transactions, 2)
	assert.Len(t, snapshot.Reviews, 1)
	assert.WithinDuration(t, time.Now(), snapshot.FetchedAt, time.Second)

	assert.Equal(t, 1234, snapshot.Stats.TotalSales)
	assert.Equal(t, 420, snapshot.Stats.TotalViews)
	assert.Equal(t, 55, snapshot.Stats.TotalFavorites)
	assert.Equal(t, 55.50, snapshot.Stats.Revenue)
}

// TestSnapshotBuilder_PassesLimit tests that the configured fetch limit is
// forwarded to every list fetch.
func TestSnapshotBuilder_PassesLimit(t *testing.T) {
	client := healthyMockClient()

	limits := make(chan int, 3)
	base := client.fetchListingsFunc
	client.fetchListingsFunc = func(ctx context.Context, shopID int64, limit int) ([]domain.ListingSummary, error) {
		limits <- limit
		return base(ctx, shopID, limit)
	}
	baseTx := client.fetchTransactionsFunc
	client.fetchTransactionsFunc = func(ctx context.Context, shopID int64, limit int) ([]domain.TransactionSummary, error) {
		limits <- limit
		return baseTx(ctx, shopID, limit)
	}
	baseReviews := client.fetchReviewsFunc
	client.fetchReviewsFunc = func(ctx context.Context, shopID int64, limit int) ([]domain.ReviewSummary, error) {
		limits <- limit
		return baseReviews(ctx, shopID, limit)
	}

	builder := NewSnapshotBuilder(client, 25, zerolog.Nop())
	_, err := builder.Build(context.Background(), 501)
	require.NoError(t, err)

	close(limits)
	for limit := range limits {
		assert.Equal(t, 25, limit)
	}
}

// TestSnapshotBuilder_FailsFast tests that one failing fetch fails the whole
// build with no partial snapshot.
func TestSnapshotBuilder_FailsFast(t *testing.T) {
	errBoom := errors.New("transactions unavailable")

	client := healthyMockClient()
	client.fetchTransactionsFunc = func(ctx context.Context, shopID int64, limit int) ([]domain.TransactionSummary, error) {
		return nil, errBoom
	}

	builder := NewSnapshotBuilder(client, 10, zerolog.Nop())

	snapshot, err := builder.Build(context.Background(), 501)
	assert.Nil(t, snapshot)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "shop 501")
}
