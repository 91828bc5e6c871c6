package repository

import (
	"context"
	"testing"
	"time"

	"etsy-sync-core/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCredential(shopID int64, expiry time.Time) *domain.ShopCredential {
	return &domain.ShopCredential{
		ShopID:       shopID,
		ClientID:     "client123",
		ClientSecret: "secret",
		AccessToken:  "42.access",
		RefreshToken: "refresh-1",
		AccessExpiry: expiry,
		UpdatedAt:    time.Now(),
	}
}

// TestMemoryTokenRepository_GetAbsent tests that an unknown shop yields no
// credential and no error.
func TestMemoryTokenRepository_GetAbsent(t *testing.T) {
	store := NewMemoryTokenRepository()

	cred, err := store.Get(context.Background(), 501)
	require.NoError(t, err)
	assert.Nil(t, cred)
}

// TestMemoryTokenRepository_PutGet tests the round trip and replacement.
func TestMemoryTokenRepository_PutGet(t *testing.T) {
	store := NewMemoryTokenRepository()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testCredential(501, time.Now().Add(time.Hour))))

	cred, err := store.Get(ctx, 501)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "42.access", cred.AccessToken)
	assert.Equal(t, "refresh-1", cred.RefreshToken)

	rotated := testCredential(501, time.Now().Add(time.Hour))
	rotated.AccessToken = "42.access-2"
	rotated.RefreshToken = "refresh-2"
	require.NoError(t, store.Put(ctx, rotated))

	cred, err = store.Get(ctx, 501)
	require.NoError(t, err)
	assert.Equal(t, "42.access-2", cred.AccessToken)
	assert.Equal(t, "refresh-2", cred.RefreshToken)
}

// TestMemoryTokenRepository_GetReturnsCopy tests that mutating a returned
// credential does not leak into the store.
func TestMemoryTokenRepository_GetReturnsCopy(t *testing.T) {
	store := NewMemoryTokenRepository()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testCredential(501, time.Now().Add(time.Hour))))

	first, err := store.Get(ctx, 501)
	require.NoError(t, err)
	first.AccessToken = "tampered"

	second, err := store.Get(ctx, 501)
	require.NoError(t, err)
	assert.Equal(t, "42.access", second.AccessToken)
}

// TestMemoryTokenRepository_Delete tests removal and the unknown-shop no-op.
func TestMemoryTokenRepository_Delete(t *testing.T) {
	store := NewMemoryTokenRepository()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testCredential(501, time.Now().Add(time.Hour))))
	require.NoError(t, store.Delete(ctx, 501))

	cred, err := store.Get(ctx, 501)
	require.NoError(t, err)
	assert.Nil(t, cred)

	assert.NoError(t, store.Delete(ctx, 999))
}

// TestMemoryTokenRepository_IsExpired tests expiry with skew, with unknown
// shops counting as expired.
func TestMemoryTokenRepository_IsExpired(t *testing.T) {
	store := NewMemoryTokenRepository()
	ctx := context.Background()
	skew := 60 * time.Second

	expired, err := store.IsExpired(ctx, 501, skew)
	require.NoError(t, err)
	assert.True(t, expired, "unknown shop counts as expired")

	require.NoError(t, store.Put(ctx, testCredential(501, time.Now().Add(time.Hour))))
	expired, err = store.IsExpired(ctx, 501, skew)
	require.NoError(t, err)
	assert.False(t, expired)

	// Expiry inside the skew window is already unusable.
	require.NoError(t, store.Put(ctx, testCredential(502, time.Now().Add(30*time.Second))))
	expired, err = store.IsExpired(ctx, 502, skew)
	require.NoError(t, err)
	assert.True(t, expired)

	require.NoError(t, store.Put(ctx, testCredential(503, time.Now().Add(-time.Minute))))
	expired, err = store.IsExpired(ctx, 503, skew)
	require.NoError(t, err)
	assert.True(t, expired)
}
