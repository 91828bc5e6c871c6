package repository

import (
	"context"
	"sort"
	"sync"

	"etsy-sync-core/internal/domain"
	"etsy-sync-core/internal/ports"
)

// MemoryRegistrationRepository implements RegistrationRepository with a
// process-local map.
type MemoryRegistrationRepository struct {
	mu            sync.RWMutex
	registrations map[int64]domain.ShopRegistration
}

// NewMemoryRegistrationRepository creates a new in-memory shop registry.
func NewMemoryRegistrationRepository() ports.RegistrationRepository {
	return &MemoryRegistrationRepository{
		registrations: make(map[int64]domain.ShopRegistration),
	}
}

// Save stores a registration, replacing any previous one for the shop.
func (r *MemoryRegistrationRepository) Save(ctx context.Context, reg *domain.ShopRegistration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.registrations[reg.ShopID] = *reg
	return nil
}

// Get retrieves a registration, or (nil, nil) when the shop is unknown.
func (r *MemoryRegistrationRepository) Get(ctx context.Context, shopID int64) (*domain.ShopRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.registrations[shopID]
	if !ok {
		return nil, nil
	}
	return &reg, nil
}

// List returns all registrations ordered by shop id.
func (r *MemoryRegistrationRepository) List(ctx context.Context) ([]*domain.ShopRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	regs := make([]*domain.ShopRegistration, 0, len(r.registrations))
	for id := range r.registrations {
		reg := r.registrations[id]
		regs = append(regs, &reg)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].ShopID < regs[j].ShopID })
	return regs, nil
}

// Delete removes a registration. Deleting an unknown shop is a no-op.
func (r *MemoryRegistrationRepository) Delete(ctx context.Context, shopID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.registrations, shopID)
	return nil
}
