package repository

import (
	"context"
	"testing"
	"time"

	"etsy-sync-core/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistration(shopID int64, name string) *domain.ShopRegistration {
	return &domain.ShopRegistration{
		ShopID:         shopID,
		ShopName:       name,
		Status:         domain.StatusActive,
		PollInterval:   5 * time.Minute,
		StockThreshold: 5,
		CreatedAt:      time.Now(),
	}
}

// TestMemoryRegistrationRepository_SaveGet tests the round trip and that an
// unknown shop yields no registration and no error.
func TestMemoryRegistrationRepository_SaveGet(t *testing.T) {
	repo := NewMemoryRegistrationRepository()
	ctx := context.Background()

	reg, err := repo.Get(ctx, 501)
	require.NoError(t, err)
	assert.Nil(t, reg)

	require.NoError(t, repo.Save(ctx, testRegistration(501, "CeramicsByMaria")))

	reg, err = repo.Get(ctx, 501)
	require.NoError(t, err)
	require.NotNil(t, reg)
	assert.Equal(t, "CeramicsByMaria", reg.ShopName)
	assert.Equal(t, domain.StatusActive, reg.Status)
	assert.Equal(t, 5*time.Minute, reg.PollInterval)
}

// TestMemoryRegistrationRepository_SaveReplaces tests that saving again
// overwrites the previous registration.
func TestMemoryRegistrationRepository_SaveReplaces(t *testing.T) {
	repo := NewMemoryRegistrationRepository()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testRegistration(501, "CeramicsByMaria")))

	updated := testRegistration(501, "CeramicsByMaria")
	updated.Status = domain.StatusReauthRequired
	updated.StockThreshold = 2
	require.NoError(t, repo.Save(ctx, updated))

	reg, err := repo.Get(ctx, 501)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReauthRequired, reg.Status)
	assert.Equal(t, 2, reg.StockThreshold)
}

// TestMemoryRegistrationRepository_List tests ordering by shop id.
func TestMemoryRegistrationRepository_List(t *testing.T) {
	repo := NewMemoryRegistrationRepository()
	ctx := context.Background()

	regs, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, regs)

	require.NoError(t, repo.Save(ctx, testRegistration(503, "WovenGoods")))
	require.NoError(t, repo.Save(ctx, testRegistration(501, "CeramicsByMaria")))
	require.NoError(t, repo.Save(ctx, testRegistration(502, "PrintsAndPaper")))

	regs, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 3)
	assert.Equal(t, int64(501), regs[0].ShopID)
	assert.Equal(t, int64(502), regs[1].ShopID)
	assert.Equal(t, int64(503), regs[2].ShopID)
}

// TestMemoryRegistrationRepository_GetReturnsCopy tests that mutating a
// returned registration does not leak into the store.
func TestMemoryRegistrationRepository_GetReturnsCopy(t *testing.T) {
	repo := NewMemoryRegistrationRepository()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testRegistration(501, "CeramicsByMaria")))

	first, err := repo.Get(ctx, 501)
	require.NoError(t, err)
	first.StockThreshold = 99

	second, err := repo.Get(ctx, 501)
	require.NoError(t, err)
	assert.Equal(t, 5, second.StockThreshold)
}

// TestMemoryRegistrationRepository_Delete tests removal and the unknown-shop
// no-op.
func TestMemoryRegistrationRepository_Delete(t *testing.T) {
	repo := NewMemoryRegistrationRepository()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testRegistration(501, "CeramicsByMaria")))
	require.NoError(t, repo.Delete(ctx, 501))

	reg, err := repo.Get(ctx, 501)
	require.NoError(t, err)
	assert.Nil(t, reg)

	assert.NoError(t, repo.Delete(ctx, 999))
}
