package ports

import (
	"context"
	"time"

	"etsy-sync-core/internal/domain"
)

// TokenStore defines the interface for credential persistence. One entry per
// connected shop. Lookups for an unknown shop return (nil, nil).
// Implementations must serialize per-shop mutation so a concurrent read never
// observes a half-written credential.
type TokenStore interface {
	Get(ctx context.Context, shopID int64) (*domain.ShopCredential, error)
	Put(ctx context.Context, cred *domain.ShopCredential) error
	Delete(ctx context.Context, shopID int64) error

	// IsExpired reports whether the shop's access token is unusable at
	// now+skew. An unknown shop counts as expired.
	IsExpired(ctx context.Context, shopID int64, skew time.Duration) (bool, error)
}

// SessionRepository defines the interface for in-flight OAuth sessions.
// Expired sessions behave as absent.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *domain.AuthSession) error
	GetSession(ctx context.Context, id string) (*domain.AuthSession, error)
	GetSessionByState(ctx context.Context, state string) (*domain.AuthSession, error)
	UpdateSession(ctx context.Context, session *domain.AuthSession) error
	DeleteSession(ctx context.Context, id string) error
}

// RegistrationRepository defines the interface for the monitored-shop registry.
type RegistrationRepository interface {
	Save(ctx context.Context, reg *domain.ShopRegistration) error
	Get(ctx context.Context, shopID int64) (*domain.ShopRegistration, error)
	List(ctx context.Context) ([]*domain.ShopRegistration, error)
	Delete(ctx context.Context, shopID int64) error
}
