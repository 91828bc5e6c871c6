package repository

import (
	"context"
	"sync"
	"time"

	"etsy-sync-core/internal/domain"
	"etsy-sync-core/internal/ports"
)

// MemoryTokenRepository implements TokenStore with a process-local map.
// Mutation is serialized per store; reads hand out copies so a caller never
// observes a credential mid-write.
type MemoryTokenRepository struct {
	mu          sync.RWMutex
	credentials map[int64]domain.ShopCredential
}

// NewMemoryTokenRepository creates a new in-memory token store.
func NewMemoryTokenRepository() ports.TokenStore {
	return &MemoryTokenRepository{
		credentials: make(map[int64]domain.ShopCredential),
	}
}

// Get retrieves the credential for a shop, or (nil, nil) when absent.
func (r *MemoryTokenRepository) Get(ctx context.Context, shopID int64) (*domain.ShopCredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cred, ok := r.credentials[shopID]
	if !ok {
		return nil, nil
	}
	return &cred, nil
}

// Put stores a credential, replacing any previous one for the shop.
func (r *MemoryTokenRepository) Put(ctx context.Context, cred *domain.ShopCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.credentials[cred.ShopID] = *cred
	return nil
}

// Delete removes a shop's credential. Deleting an unknown shop is a no-op.
func (r *MemoryTokenRepository) Delete(ctx context.Context, shopID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.credentials, shopID)
	return nil
}

// IsExpired reports whether the shop's access token is unusable at now+skew.
// Unknown shops count as expired.
func (r *MemoryTokenRepository) IsExpired(ctx context.Context, shopID int64, skew time.Duration) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cred, ok := r.credentials[shopID]
	if !ok {
		return true, nil
	}
	return cred.Expired(skew), nil
}
