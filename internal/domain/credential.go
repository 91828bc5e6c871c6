package domain

import "time"

// ShopCredential holds the OAuth2 credential set for one connected shop.
// Owned by the token store: created when authorization completes, replaced
// on every refresh, removed when the shop is disconnected.
type ShopCredential struct {
	ShopID       int64     `json:"shop_id"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"-"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	AccessExpiry time.Time `json:"access_expiry"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Expired reports whether the access token is unusable at now+skew.
func (c *ShopCredential) Expired(skew time.Duration) bool {
	return !time.Now().Add(skew).Before(c.AccessExpiry)
}

// RegistrationStatus describes the monitoring state of a connected shop.
type RegistrationStatus string

const (
	StatusActive         RegistrationStatus = "active"
	StatusReauthRequired RegistrationStatus = "reauth_required"
)

// ShopRegistration is one monitored shop with its per-shop settings.
type ShopRegistration struct {
	ShopID         int64              `json:"shop_id"`
	ShopName       string             `json:"shop_name"`
	Status         RegistrationStatus `json:"status"`
	PollInterval   time.Duration      `json:"poll_interval"`
	StockThreshold int                `json:"stock_threshold"`
	CreatedAt      time.Time          `json:"created_at"`
	LastSyncedAt   time.Time          `json:"last_synced_at"`
}

// ShopRef identifies a shop discovered during authorization, before it is registered.
type ShopRef struct {
	ShopID   int64  `json:"shop_id"`
	ShopName string `json:"shop_name"`
}
