package ports

import (
	"context"

	"etsy-sync-core/internal/domain"
)

// ShopAPIClient defines the authenticated read surface against the shop API.
// Every call attaches a bearer token obtained from AuthClient, retries
// transient failures per the shared backoff policy, and maps upstream
// payloads into domain entities.
type ShopAPIClient interface {
	FetchShop(ctx context.Context, shopID int64) (*domain.ShopInfo, error)
	FetchListings(ctx context.Context, shopID int64, limit int) ([]domain.ListingSummary, error)
	FetchTransactions(ctx context.Context, shopID int64, limit int) ([]domain.TransactionSummary, error)
	FetchReviews(ctx context.Context, shopID int64, limit int) ([]domain.ReviewSummary, error)
}

// AuthClient defines the OAuth2 authorization-code-with-PKCE lifecycle:
// begin/complete the browser flow, refresh stored tokens, and hand out a
// valid bearer token per API call.
type AuthClient interface {
	// BeginAuthorization creates an authorization session for the given app
	// credentials and returns it with the authorize URL populated.
	BeginAuthorization(ctx context.Context, clientID, clientSecret string) (*domain.AuthSession, error)

	// CompleteAuthorization validates the callback state, exchanges the code
	// for tokens, and discovers the account's shops. Single-shop accounts are
	// registered in the token store immediately; multi-shop accounts get a
	// candidate list to resolve via SelectShop.
	CompleteAuthorization(ctx context.Context, code, state string) (*domain.AuthorizationResult, error)

	// SelectShop finishes a multi-shop authorization by binding the exchanged
	// tokens to one of the session's candidate shops.
	SelectShop(ctx context.Context, sessionID string, shopID int64) (*domain.ShopRef, error)

	// Refresh exchanges the stored refresh token for a new access token,
	// updating the token store atomically on success.
	Refresh(ctx context.Context, shopID int64) error

	// ValidToken returns a usable access token and the API key to send with
	// it, refreshing transparently when the stored token is stale. Concurrent
	// calls for one shop coalesce into a single refresh.
	ValidToken(ctx context.Context, shopID int64) (accessToken, apiKey string, err error)
}
