package repository

import (
	"context"
	"sync"

	"etsy-sync-core/internal/domain"
	"etsy-sync-core/internal/ports"
)

// MemorySessionRepository implements SessionRepository with a process-local
// map. Expired sessions are dropped lazily on lookup.
type MemorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]domain.AuthSession
}

// NewMemorySessionRepository creates a new in-memory session repository.
func NewMemorySessionRepository() ports.SessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string]domain.AuthSession),
	}
}

// CreateSession stores a new authorization session.
func (r *MemorySessionRepository) CreateSession(ctx context.Context, session *domain.AuthSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = *session
	return nil
}

// GetSession retrieves a session by id, or (nil, nil) when absent or expired.
func (r *MemorySessionRepository) GetSession(ctx context.Context, id string) (*domain.AuthSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	if session.Expired() {
		delete(r.sessions, id)
		return nil, nil
	}
	return &session, nil
}

// GetSessionByState retrieves a session by its state nonce, or (nil, nil)
// when absent or expired.
func (r *MemorySessionRepository) GetSessionByState(ctx context.Context, state string) (*domain.AuthSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, session := range r.sessions {
		if session.State != state {
			continue
		}
		if session.Expired() {
			delete(r.sessions, id)
			return nil, nil
		}
		return &session, nil
	}
	return nil, nil
}

// UpdateSession replaces a stored session.
func (r *MemorySessionRepository) UpdateSession(ctx context.Context, session *domain.AuthSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = *session
	return nil
}

// DeleteSession removes a session. Deleting an unknown session is a no-op.
func (r *MemorySessionRepository) DeleteSession(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	return nil
}
