package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"etsy-sync-core/internal/domain"
	"etsy-sync-core/internal/ports"

	"github.com/rs/zerolog"
)

// Poll and threshold bounds. Values outside these are rejected, not clamped.
const (
	MinPollInterval = 60 * time.Second
	MaxPollInterval = 3600 * time.Second

	MinStockThreshold = 1
	MaxStockThreshold = 100
)

// ErrShopNotFound is returned for operations on a shop that is not registered.
var ErrShopNotFound = errors.New("shop not registered")

// ShopService owns the monitored-shop registry: it runs the authorization
// flow, registers shops, applies per-shop settings and tears shops down.
type ShopService struct {
	auth          ports.AuthClient
	registrations ports.RegistrationRepository
	tokens        ports.TokenStore
	coordinator   *Coordinator
	logger        zerolog.Logger

	defaultInterval  time.Duration
	defaultThreshold int
}

// NewShopService creates a new shop service. New registrations start with the
// given default poll interval and stock threshold.
func NewShopService(auth ports.AuthClient, registrations ports.RegistrationRepository, tokens ports.TokenStore, coordinator *Coordinator, defaultInterval time.Duration, defaultThreshold int, logger zerolog.Logger) *ShopService {
	return &ShopService{
		auth:             auth,
		registrations:    registrations,
		tokens:           tokens,
		coordinator:      coordinator,
		logger:           logger,
		defaultInterval:  defaultInterval,
		defaultThreshold: defaultThreshold,
	}
}

// AddShop starts the authorization flow for a new shop connection. The caller
// must send the user to the returned session's authorize URL.
func (s *ShopService) AddShop(ctx context.Context, clientID, clientSecret string) (*domain.AuthSession, error) {
	session, err := s.auth.BeginAuthorization(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("sessionId", session.ID).
		Msg("Authorization started")

	return session, nil
}

// CompleteOAuthCallback finishes the authorization flow from the provider
// redirect. A single-shop account is registered and its cycle started; a
// multi-shop account returns candidates for SelectShop.
func (s *ShopService) CompleteOAuthCallback(ctx context.Context, code, state string) (*domain.AuthorizationResult, error) {
	result, err := s.auth.CompleteAuthorization(ctx, code, state)
	if err != nil {
		return nil, err
	}

	if result.Registered != nil {
		if err := s.register(ctx, result.Registered); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// SelectShop resolves a multi-shop authorization onto one shop and
// registers it.
func (s *ShopService) SelectShop(ctx context.Context, sessionID string, shopID int64) (*domain.ShopRef, error) {
	ref, err := s.auth.SelectShop(ctx, sessionID, shopID)
	if err != nil {
		return nil, err
	}
	if err := s.register(ctx, ref); err != nil {
		return nil, err
	}
	return ref, nil
}

// register saves the registration and starts its cycle. Re-authorizing an
// already registered shop keeps its settings and flips it back to active.
func (s *ShopService) register(ctx context.Context, ref *domain.ShopRef) error {
	reg, err := s.registrations.Get(ctx, ref.ShopID)
	if err != nil {
		return fmt.Errorf("failed to look up shop registration: %w", err)
	}
	if reg == nil {
		reg = &domain.ShopRegistration{
			ShopID:         ref.ShopID,
			ShopName:       ref.ShopName,
			PollInterval:   s.defaultInterval,
			StockThreshold: s.defaultThreshold,
			CreatedAt:      time.Now(),
		}
	}
	reg.ShopName = ref.ShopName
	reg.Status = domain.StatusActive

	if err := s.registrations.Save(ctx, reg); err != nil {
		return fmt.Errorf("failed to save shop registration: %w", err)
	}

	s.coordinator.StartCycle(reg)

	s.logger.Info().
		Int64("shopId", ref.ShopID).
		Str("shopName", ref.ShopName).
		Msg("Shop registered")

	return nil
}

// ListShops returns every registration.
func (s *ShopService) ListShops(ctx context.Context) ([]*domain.ShopRegistration, error) {
	return s.registrations.List(ctx)
}

// RemoveShop disconnects a shop: its cycle stops and its credential,
// reconciliation state and registration are discarded.
func (s *ShopService) RemoveShop(ctx context.Context, shopID int64) error {
	reg, err := s.registrations.Get(ctx, shopID)
	if err != nil {
		return fmt.Errorf("failed to look up shop registration: %w", err)
	}
	if reg == nil {
		return fmt.Errorf("shop %d: %w", shopID, ErrShopNotFound)
	}

	s.coordinator.StopCycle(shopID)

	if err := s.tokens.Delete(ctx, shopID); err != nil {
		return fmt.Errorf("failed to delete shop credential: %w", err)
	}
	if err := s.registrations.Delete(ctx, shopID); err != nil {
		return fmt.Errorf("failed to delete shop registration: %w", err)
	}

	s.logger.Info().Int64("shopId", shopID).Msg("Shop removed")
	return nil
}

// SetPollInterval updates a shop's poll cadence. The new interval applies
// after the currently scheduled poll.
func (s *ShopService) SetPollInterval(ctx context.Context, shopID int64, interval time.Duration) error {
	if interval < MinPollInterval || interval > MaxPollInterval {
		return &domain.ConfigError{Reason: fmt.Sprintf("poll interval must be between %s and %s", MinPollInterval, MaxPollInterval)}
	}

	reg, err := s.registrations.Get(ctx, shopID)
	if err != nil {
		return fmt.Errorf("failed to look up shop registration: %w", err)
	}
	if reg == nil {
		return fmt.Errorf("shop %d: %w", shopID, ErrShopNotFound)
	}

	reg.PollInterval = interval
	if err := s.registrations.Save(ctx, reg); err != nil {
		return fmt.Errorf("failed to save shop registration: %w", err)
	}
	if err := s.coordinator.SetInterval(shopID, interval); err != nil {
		return err
	}

	s.logger.Info().
		Int64("shopId", shopID).
		Dur("interval", interval).
		Msg("Poll interval updated")
	return nil
}

// SetLowStockThreshold updates a shop's low-stock threshold. It applies from
// the next cycle.
func (s *ShopService) SetLowStockThreshold(ctx context.Context, shopID int64, threshold int) error {
	if threshold < MinStockThreshold || threshold > MaxStockThreshold {
		return &domain.ConfigError{Reason: fmt.Sprintf("stock threshold must be between %d and %d", MinStockThreshold, MaxStockThreshold)}
	}

	reg, err := s.registrations.Get(ctx, shopID)
	if err != nil {
		return fmt.Errorf("failed to look up shop registration: %w", err)
	}
	if reg == nil {
		return fmt.Errorf("shop %d: %w", shopID, ErrShopNotFound)
	}

	reg.StockThreshold = threshold
	if err := s.registrations.Save(ctx, reg); err != nil {
		return fmt.Errorf("failed to save shop registration: %w", err)
	}
	if err := s.coordinator.SetThreshold(shopID, threshold); err != nil {
		return err
	}

	s.logger.Info().
		Int64("shopId", shopID).
		Int("threshold", threshold).
		Msg("Stock threshold updated")
	return nil
}

// ForceRefresh schedules an immediate poll for a shop.
func (s *ShopService) ForceRefresh(ctx context.Context, shopID int64) error {
	reg, err := s.registrations.Get(ctx, shopID)
	if err != nil {
		return fmt.Errorf("failed to look up shop registration: %w", err)
	}
	if reg == nil {
		return fmt.Errorf("shop %d: %w", shopID, ErrShopNotFound)
	}
	return s.coordinator.ForceRefresh(shopID)
}
