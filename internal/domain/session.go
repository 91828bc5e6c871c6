package domain

import "time"

// AuthSession represents one in-flight OAuth authorization.
// It carries the PKCE verifier between the begin and complete steps and,
// when the account owns several shops, holds the exchanged tokens until
// the caller picks one. Sessions expire and are never persisted.
type AuthSession struct {
	ID           string    `json:"id"`
	State        string    `json:"state"`
	Verifier     string    `json:"-"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"-"`
	RedirectURI  string    `json:"redirect_uri"`
	Scopes       []string  `json:"scopes"`
	AuthorizeURL string    `json:"authorize_url"`

	// Populated after the code exchange while shop selection is pending.
	AccessToken    string    `json:"-"`
	RefreshToken   string    `json:"-"`
	AccessExpiry   time.Time `json:"access_expiry"`
	UserID         int64     `json:"user_id"`
	CandidateShops []ShopRef `json:"candidate_shops,omitempty"`

	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the session is past its validity window.
func (s *AuthSession) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// AuthorizationResult is the outcome of completing an OAuth callback.
// Either Registered is set (single-shop account, registration done) or
// Candidates lists the shops the caller must choose from via SelectShop.
type AuthorizationResult struct {
	SessionID  string    `json:"session_id"`
	Registered *ShopRef  `json:"registered,omitempty"`
	Candidates []ShopRef `json:"candidates,omitempty"`
}
