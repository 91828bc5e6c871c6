package etsy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"etsy-sync-core/internal/domain"
	"etsy-sync-core/internal/infrastructure/metrics"
	"etsy-sync-core/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	defaultAuthorizeURL = "https://www.etsy.com/oauth/connect"
	defaultTokenURL     = "https://api.etsy.com/v3/public/oauth/token"

	// Authorization sessions are valid for ten minutes.
	sessionTTL = 10 * time.Minute

	// Tokens within a minute of expiry are treated as already stale.
	expirySkew = 60 * time.Second

	defaultExpiresIn = 3600
)

var defaultScopes = []string{"transactions_r", "listings_r", "shops_r"}

// AuthClient implements the OAuth2 authorization-code-with-PKCE lifecycle
// against the Etsy endpoints.
type AuthClient struct {
	tokens       ports.TokenStore
	sessions     ports.SessionRepository
	httpClient   *http.Client
	authorizeURL string
	tokenURL     string
	apiBaseURL   string
	redirectURI  string
	retry        RetryConfig
	sf           singleflight.Group
	logger       zerolog.Logger
	sleep        func(time.Duration)
}

// NewAuthClient creates a new auth client adapter.
func NewAuthClient(tokens ports.TokenStore, sessions ports.SessionRepository, redirectURI string, logger zerolog.Logger) *AuthClient {
	return NewAuthClientWithOptions(tokens, sessions, redirectURI, DefaultRetryConfig(), logger)
}

// NewAuthClientWithOptions creates an auth client with an explicit retry policy.
func NewAuthClientWithOptions(tokens ports.TokenStore, sessions ports.SessionRepository, redirectURI string, retry RetryConfig, logger zerolog.Logger) *AuthClient {
	return &AuthClient{
		tokens:       tokens,
		sessions:     sessions,
		httpClient:   &http.Client{Timeout: requestTimeout},
		authorizeURL: defaultAuthorizeURL,
		tokenURL:     defaultTokenURL,
		apiBaseURL:   defaultBaseURL,
		redirectURI:  redirectURI,
		retry:        retry,
		logger:       logger,
		sleep:        time.Sleep,
	}
}

// BeginAuthorization starts a new PKCE authorization session and returns it
// with the authorize URL populated.
func (a *AuthClient) BeginAuthorization(ctx context.Context, clientID, clientSecret string) (*domain.AuthSession, error) {
	if clientID == "" || clientSecret == "" {
		return nil, &domain.ConfigError{Reason: "client_id and client_secret are required"}
	}

	verifier, err := newCodeVerifier()
	if err != nil {
		return nil, err
	}
	state, err := newStateToken()
	if err != nil {
		return nil, err
	}

	session := &domain.AuthSession{
		ID:           uuid.NewString(),
		State:        state,
		Verifier:     verifier,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  a.redirectURI,
		Scopes:       defaultScopes,
		ExpiresAt:    time.Now().Add(sessionTTL),
		CreatedAt:    time.Now(),
	}

	session.AuthorizeURL = fmt.Sprintf(
		"%s?response_type=code&redirect_uri=%s&scope=%s&client_id=%s&state=%s&code_challenge=%s&code_challenge_method=S256",
		a.authorizeURL,
		url.QueryEscape(a.redirectURI),
		url.QueryEscape(strings.Join(defaultScopes, " ")),
		url.QueryEscape(clientID),
		state,
		codeChallenge(verifier),
	)

	if err := a.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	a.logger.Info().
		Str("session_id", session.ID).
		Msg("Started OAuth authorization session")

	return session, nil
}

// CompleteAuthorization validates the callback, exchanges the code for
// tokens, and discovers the shops owned by the authorizing account.
func (a *AuthClient) CompleteAuthorization(ctx context.Context, code, state string) (*domain.AuthorizationResult, error) {
	session, err := a.sessions.GetSessionByState(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, &domain.AuthError{
			Reason: domain.AuthReasonInvalidState,
			Err:    fmt.Errorf("unknown or expired state"),
		}
	}

	token, err := a.exchangeCode(ctx, session, code)
	if err != nil {
		return nil, &domain.AuthError{Reason: domain.AuthReasonTokenExchangeFailed, Err: err}
	}

	userID, err := parseUserID(token.AccessToken)
	if err != nil {
		return nil, &domain.AuthError{Reason: domain.AuthReasonTokenExchangeFailed, Err: err}
	}

	shops, err := a.fetchUserShops(ctx, userID, token.AccessToken, session.ClientID)
	if err != nil {
		return nil, &domain.AuthError{Reason: domain.AuthReasonTokenExchangeFailed, Err: err}
	}
	if len(shops) == 0 {
		return nil, &domain.AuthError{
			Reason: domain.AuthReasonTokenExchangeFailed,
			Err:    fmt.Errorf("account owns no shops"),
		}
	}

	if len(shops) == 1 {
		shop := shops[0]
		if err := a.storeCredential(ctx, shop.ShopID, session, token); err != nil {
			return nil, err
		}
		if err := a.sessions.DeleteSession(ctx, session.ID); err != nil {
			a.logger.Warn().Err(err).Str("session_id", session.ID).Msg("Failed to delete session")
		}
		a.logger.Info().
			Int64("shop_id", shop.ShopID).
			Str("shop_name", shop.ShopName).
			Msg("Authorization completed")
		return &domain.AuthorizationResult{SessionID: session.ID, Registered: &shop}, nil
	}

	// Several shops on the account: hold the tokens on the session until the
	// caller picks one.
	session.AccessToken = token.AccessToken
	session.RefreshToken = token.RefreshToken
	session.AccessExpiry = token.expiry()
	session.UserID = userID
	session.CandidateShops = shops
	if err := a.sessions.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	a.logger.Info().
		Str("session_id", session.ID).
		Int("candidates", len(shops)).
		Msg("Authorization pending shop selection")

	return &domain.AuthorizationResult{SessionID: session.ID, Candidates: shops}, nil
}

// SelectShop finishes a multi-shop authorization for one candidate.
func (a *AuthClient) SelectShop(ctx context.Context, sessionID string, shopID int64) (*domain.ShopRef, error) {
	session, err := a.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, &domain.AuthError{
			Reason: domain.AuthReasonInvalidState,
			Err:    fmt.Errorf("unknown or expired session"),
		}
	}
	if session.AccessToken == "" {
		return nil, &domain.AuthError{
			Reason: domain.AuthReasonInvalidState,
			Err:    fmt.Errorf("authorization has not been completed"),
		}
	}

	var selected *domain.ShopRef
	for i := range session.CandidateShops {
		if session.CandidateShops[i].ShopID == shopID {
			selected = &session.CandidateShops[i]
			break
		}
	}
	if selected == nil {
		return nil, &domain.ConfigError{Reason: fmt.Sprintf("shop %d was not offered by this authorization", shopID)}
	}

	cred := &domain.ShopCredential{
		ShopID:       shopID,
		ClientID:     session.ClientID,
		ClientSecret: session.ClientSecret,
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		AccessExpiry: session.AccessExpiry,
		UpdatedAt:    time.Now(),
	}
	if err := a.tokens.Put(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}
	if err := a.sessions.DeleteSession(ctx, session.ID); err != nil {
		a.logger.Warn().Err(err).Str("session_id", session.ID).Msg("Failed to delete session")
	}

	shop := *selected
	a.logger.Info().
		Int64("shop_id", shop.ShopID).
		Str("shop_name", shop.ShopName).
		Msg("Authorization completed")
	return &shop, nil
}

// Refresh exchanges the stored refresh token for a new access token. A
// provider rejection is terminal and leaves the store untouched; transport
// failures are retried with backoff before surfacing as transient.
func (a *AuthClient) Refresh(ctx context.Context, shopID int64) error {
	cred, err := a.tokens.Get(ctx, shopID)
	if err != nil {
		return fmt.Errorf("failed to get credential: %w", err)
	}
	if cred == nil {
		return &domain.ConfigError{Reason: fmt.Sprintf("no credential for shop %d", shopID)}
	}

	values := url.Values{}
	values.Set("grant_type", "refresh_token")
	values.Set("client_id", cred.ClientID)
	values.Set("client_secret", cred.ClientSecret)
	values.Set("refresh_token", cred.RefreshToken)

	var (
		lastErr     error
		pendingHint time.Duration
	)
	for attempt := 0; attempt < a.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := a.retry.Delay(attempt - 1)
			if pendingHint > delay {
				delay = pendingHint
			}
			pendingHint = 0
			a.sleep(delay)
		}

		token, status, retryAfter, err := a.postToken(ctx, values)
		switch {
		case err == nil:
			updated := &domain.ShopCredential{
				ShopID:       cred.ShopID,
				ClientID:     cred.ClientID,
				ClientSecret: cred.ClientSecret,
				AccessToken:  token.AccessToken,
				RefreshToken: token.RefreshToken,
				AccessExpiry: token.expiry(),
				UpdatedAt:    time.Now(),
			}
			// Keep the old refresh token when the provider does not rotate it.
			if updated.RefreshToken == "" {
				updated.RefreshToken = cred.RefreshToken
			}
			if err := a.tokens.Put(ctx, updated); err != nil {
				return fmt.Errorf("failed to store refreshed credential: %w", err)
			}
			metrics.TokenRefreshesTotal.WithLabelValues("ok").Inc()
			a.logger.Debug().Int64("shop_id", shopID).Msg("Refreshed access token")
			return nil

		case status == http.StatusTooManyRequests:
			lastErr = err
			pendingHint = retryAfter

		case status >= 400 && status < 500:
			metrics.TokenRefreshesTotal.WithLabelValues("revoked").Inc()
			a.logger.Warn().
				Int64("shop_id", shopID).
				Int("status", status).
				Msg("Refresh token rejected, re-authorization required")
			return &domain.AuthError{Reason: domain.AuthReasonRefreshRevoked, ShopID: shopID, Err: err}

		default:
			lastErr = err
		}

		a.logger.Warn().
			Err(err).
			Int64("shop_id", shopID).
			Int("attempt", attempt+1).
			Msg("Token refresh failed, retrying")
	}

	metrics.TokenRefreshesTotal.WithLabelValues("transient").Inc()
	return &domain.AuthError{Reason: domain.AuthReasonTransient, ShopID: shopID, Err: lastErr}
}

// ValidToken returns a usable access token and API key for a shop,
// refreshing first when the stored token is stale. Concurrent callers for
// one shop share a single refresh.
func (a *AuthClient) ValidToken(ctx context.Context, shopID int64) (string, string, error) {
	expired, err := a.tokens.IsExpired(ctx, shopID, expirySkew)
	if err != nil {
		return "", "", fmt.Errorf("failed to check expiry: %w", err)
	}

	if expired {
		_, err, _ := a.sf.Do(strconv.FormatInt(shopID, 10), func() (interface{}, error) {
			// Re-check inside the flight: a caller that queued behind the
			// winning refresh finds a fresh token here.
			stale, err := a.tokens.IsExpired(ctx, shopID, expirySkew)
			if err != nil {
				return nil, err
			}
			if !stale {
				return nil, nil
			}
			return nil, a.Refresh(ctx, shopID)
		})
		if err != nil {
			return "", "", err
		}
	}

	cred, err := a.tokens.Get(ctx, shopID)
	if err != nil {
		return "", "", fmt.Errorf("failed to get credential: %w", err)
	}
	if cred == nil {
		return "", "", &domain.ConfigError{Reason: fmt.Sprintf("no credential for shop %d", shopID)}
	}
	return cred.AccessToken, cred.ClientID, nil
}

// exchangeCode trades the authorization code plus the session's PKCE
// verifier for the first token pair.
func (a *AuthClient) exchangeCode(ctx context.Context, session *domain.AuthSession, code string) (*tokenResponse, error) {
	values := url.Values{}
	values.Set("grant_type", "authorization_code")
	values.Set("client_id", session.ClientID)
	values.Set("redirect_uri", session.RedirectURI)
	values.Set("code", code)
	values.Set("code_verifier", session.Verifier)

	token, _, _, err := a.postToken(ctx, values)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return token, nil
}

// postToken performs one POST against the token endpoint and decodes the
// response. Non-200 statuses come back as an error alongside the status code
// and any Retry-After hint.
func (a *AuthClient) postToken(ctx context.Context, values url.Values) (*tokenResponse, int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, resp.StatusCode, retryAfter,
			fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var token tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&token); err != nil {
		return nil, resp.StatusCode, 0, fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, resp.StatusCode, 0, fmt.Errorf("token response missing access_token")
	}
	return &token, resp.StatusCode, 0, nil
}

// fetchUserShops lists the shops owned by the authorizing user. The endpoint
// answers with either a result list or a single shop object.
func (a *AuthClient) fetchUserShops(ctx context.Context, userID int64, accessToken, clientID string) ([]domain.ShopRef, error) {
	reqURL := fmt.Sprintf("%s/users/%d/shops", a.apiBaseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", clientID)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user shops: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read user shops response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user shops endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Count   int `json:"count"`
		Results []struct {
			ShopID   int64  `json:"shop_id"`
			ShopName string `json:"shop_name"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode user shops response: %w", err)
	}

	shops := make([]domain.ShopRef, 0, len(payload.Results))
	for _, s := range payload.Results {
		shops = append(shops, domain.ShopRef{ShopID: s.ShopID, ShopName: s.ShopName})
	}
	if len(shops) == 0 {
		var single struct {
			ShopID   int64  `json:"shop_id"`
			ShopName string `json:"shop_name"`
		}
		if err := json.Unmarshal(body, &single); err == nil && single.ShopID != 0 {
			shops = append(shops, domain.ShopRef{ShopID: single.ShopID, ShopName: single.ShopName})
		}
	}
	return shops, nil
}

func (a *AuthClient) storeCredential(ctx context.Context, shopID int64, session *domain.AuthSession, token *tokenResponse) error {
	cred := &domain.ShopCredential{
		ShopID:       shopID,
		ClientID:     session.ClientID,
		ClientSecret: session.ClientSecret,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		AccessExpiry: token.expiry(),
		UpdatedAt:    time.Now(),
	}
	if err := a.tokens.Put(ctx, cred); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

func (t *tokenResponse) expiry() time.Time {
	expiresIn := t.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	return time.Now().Add(time.Duration(expiresIn) * time.Second)
}

// parseUserID extracts the numeric user id that prefixes every access token
// before the first dot.
func parseUserID(accessToken string) (int64, error) {
	prefix, _, found := strings.Cut(accessToken, ".")
	if !found {
		return 0, fmt.Errorf("access token has no user id prefix")
	}
	userID, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("access token has a malformed user id prefix: %w", err)
	}
	return userID, nil
}
