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

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://openapi.etsy.com/v3/application"

	requestTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20

	// Upstream caps list endpoints at 100 results per call.
	maxFetchLimit = 100
)

type client struct {
	auth       ports.AuthClient
	httpClient *http.Client
	baseURL    string
	retry      RetryConfig
	logger     zerolog.Logger
	sleep      func(time.Duration)
}

// NewClient creates a new Etsy API client adapter.
func NewClient(auth ports.AuthClient, logger zerolog.Logger) ports.ShopAPIClient {
	return NewClientWithOptions(auth, DefaultRetryConfig(), logger)
}

// NewClientWithOptions creates a client with an explicit retry policy.
func NewClientWithOptions(auth ports.AuthClient, retry RetryConfig, logger zerolog.Logger) ports.ShopAPIClient {
	return &client{
		auth:       auth,
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    defaultBaseURL,
		retry:      retry,
		logger:     logger,
		sleep:      time.Sleep,
	}
}

// Shop API

func (c *client) FetchShop(ctx context.Context, shopID int64) (*domain.ShopInfo, error) {
	var payload shopPayload
	path := fmt.Sprintf("/shops/%d", shopID)
	if err := c.getJSON(ctx, shopID, "shop", path, nil, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch shop: %w", err)
	}
	return payload.toDomain(), nil
}

// Listing API

func (c *client) FetchListings(ctx context.Context, shopID int64, limit int) ([]domain.ListingSummary, error) {
	var payload listingsResponse
	path := fmt.Sprintf("/shops/%d/listings/active", shopID)
	if err := c.getJSON(ctx, shopID, "listings", path, limitQuery(limit), &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}

	listings := make([]domain.ListingSummary, 0, len(payload.Results))
	for _, l := range payload.Results {
		listings = append(listings, domain.ListingSummary{
			ListingID: l.ListingID,
			Title:     l.Title,
			Quantity:  l.Quantity,
			Views:     l.Views,
			Favorites: l.NumFavorers,
			Price:     l.Price.toFloat(),
		})
	}
	return listings, nil
}

// Transaction API

func (c *client) FetchTransactions(ctx context.Context, shopID int64, limit int) ([]domain.TransactionSummary, error) {
	var payload transactionsResponse
	path := fmt.Sprintf("/shops/%d/transactions", shopID)
	if err := c.getJSON(ctx, shopID, "transactions", path, limitQuery(limit), &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	transactions := make([]domain.TransactionSummary, 0, len(payload.Results))
	for _, t := range payload.Results {
		transactions = append(transactions, domain.TransactionSummary{
			TransactionID: t.TransactionID,
			Title:         t.Title,
			// Transactions expose only the numeric buyer id.
			BuyerName: strconv.FormatInt(t.BuyerUserID, 10),
			Quantity:  t.Quantity,
			Amount:    t.Price.toFloat(),
			CreatedAt: time.Unix(t.CreatedTimestamp, 0).UTC(),
		})
	}
	return transactions, nil
}

// Review API

func (c *client) FetchReviews(ctx context.Context, shopID int64, limit int) ([]domain.ReviewSummary, error) {
	var payload reviewsResponse
	path := fmt.Sprintf("/shops/%d/reviews", shopID)
	if err := c.getJSON(ctx, shopID, "reviews", path, limitQuery(limit), &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch reviews: %w", err)
	}

	reviews := make([]domain.ReviewSummary, 0, len(payload.Results))
	for _, r := range payload.Results {
		reviews = append(reviews, domain.ReviewSummary{
			// Reviews are keyed upstream by the transaction they belong to.
			ReviewID:  r.TransactionID,
			Rating:    r.Rating,
			Text:      r.Review,
			CreatedAt: time.Unix(r.CreatedTimestamp, 0).UTC(),
		})
	}
	return reviews, nil
}

// getJSON performs one authenticated GET with the shared status policy:
// a 401 forces one token refresh and an immediate retry, 429 honors the
// Retry-After hint, 429/5xx/transport failures back off per the retry
// config before surfacing a taxonomy error.
func (c *client) getJSON(ctx context.Context, shopID int64, endpoint, path string, query url.Values, out interface{}) error {
	var (
		refreshed   bool
		skipBackoff bool
		lastStatus  int
		lastErr     error
		hint        time.Duration
		pendingHint time.Duration
	)

	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 && !skipBackoff {
			delay := c.retry.Delay(attempt - 1)
			if pendingHint > delay {
				delay = pendingHint
			}
			pendingHint = 0
			c.sleep(delay)
		}
		skipBackoff = false

		token, apiKey, err := c.auth.ValidToken(ctx, shopID)
		if err != nil {
			return err
		}

		reqURL := c.baseURL + path
		if len(query) > 0 {
			reqURL += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("x-api-key", apiKey)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastStatus = 0
			lastErr = err
			c.logger.Warn().
				Err(err).
				Int64("shop_id", shopID).
				Str("endpoint", endpoint).
				Int("attempt", attempt+1).
				Msg("API request failed, retrying")
			continue
		}

		metrics.CountAPIRequest(endpoint, resp.StatusCode)

		switch {
		case resp.StatusCode == http.StatusOK:
			err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
			}
			return nil

		case resp.StatusCode == http.StatusUnauthorized:
			resp.Body.Close()
			if refreshed {
				return &domain.AuthError{
					Reason: domain.AuthReasonRefreshRevoked,
					ShopID: shopID,
					Err:    fmt.Errorf("still unauthorized after forced refresh"),
				}
			}
			refreshed = true
			c.logger.Warn().
				Int64("shop_id", shopID).
				Str("endpoint", endpoint).
				Msg("Got 401, forcing token refresh")
			if err := c.auth.Refresh(ctx, shopID); err != nil {
				return err
			}
			skipBackoff = true
			continue

		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			hint = parseRetryAfter(resp.Header.Get("Retry-After"))
			pendingHint = hint
			lastStatus = resp.StatusCode
			lastErr = fmt.Errorf("rate limited")
			c.logger.Warn().
				Int64("shop_id", shopID).
				Str("endpoint", endpoint).
				Dur("retry_after", hint).
				Int("attempt", attempt+1).
				Msg("Rate limited by API")
			continue

		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastStatus = resp.StatusCode
			lastErr = fmt.Errorf("server error")
			c.logger.Warn().
				Int64("shop_id", shopID).
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Int("attempt", attempt+1).
				Msg("API server error, retrying")
			continue

		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
			resp.Body.Close()
			return &domain.UpstreamError{
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(body))),
			}
		}
	}

	if lastStatus == http.StatusTooManyRequests {
		return &domain.RateLimitError{RetryAfter: hint}
	}
	return &domain.UpstreamError{StatusCode: lastStatus, Err: lastErr}
}

func limitQuery(limit int) url.Values {
	if limit < 1 {
		limit = 1
	}
	if limit > maxFetchLimit {
		limit = maxFetchLimit
	}
	return url.Values{"limit": []string{strconv.Itoa(limit)}}
}

// parseRetryAfter reads a Retry-After header in seconds; 0 when absent or
// unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// Wire payloads

type pricePayload struct {
	Amount       int64  `json:"amount"`
	Divisor      int64  `json:"divisor"`
	CurrencyCode string `json:"currency_code"`
}

func (p pricePayload) toFloat() float64 {
	divisor := p.Divisor
	if divisor == 0 {
		divisor = 100
	}
	return float64(p.Amount) / float64(divisor)
}

type shopPayload struct {
	ShopID               int64   `json:"shop_id"`
	ShopName             string  `json:"shop_name"`
	CurrencyCode         string  `json:"currency_code"`
	CreatedTimestamp     int64   `json:"created_timestamp"`
	Announcement         string  `json:"announcement"`
	SaleMessage          string  `json:"sale_message"`
	TransactionSoldCount int     `json:"transaction_sold_count"`
	ReviewAverage        float64 `json:"review_average"`
	ReviewCount          int     `json:"review_count"`
}

func (p shopPayload) toDomain() *domain.ShopInfo {
	return &domain.ShopInfo{
		ShopID:               p.ShopID,
		ShopName:             p.ShopName,
		Currency:             p.CurrencyCode,
		CreatedAt:            time.Unix(p.CreatedTimestamp, 0).UTC(),
		Announcement:         p.Announcement,
		SaleMessage:          p.SaleMessage,
		TransactionSoldCount: p.TransactionSoldCount,
		ReviewAverage:        p.ReviewAverage,
		ReviewCount:          p.ReviewCount,
	}
}

type listingPayload struct {
	ListingID   int64        `json:"listing_id"`
	Title       string       `json:"title"`
	Quantity    int          `json:"quantity"`
	Views       int          `json:"views"`
	NumFavorers int          `json:"num_favorers"`
	Price       pricePayload `json:"price"`
}

type listingsResponse struct {
	Count   int              `json:"count"`
	Results []listingPayload `json:"results"`
}

type transactionPayload struct {
	TransactionID    int64        `json:"transaction_id"`
	Title            string       `json:"title"`
	BuyerUserID      int64        `json:"buyer_user_id"`
	Quantity         int          `json:"quantity"`
	Price            pricePayload `json:"price"`
	CreatedTimestamp int64        `json:"created_timestamp"`
}

type transactionsResponse struct {
	Count   int                  `json:"count"`
	Results []transactionPayload `json:"results"`
}

type reviewPayload struct {
	TransactionID    int64  `json:"transaction_id"`
	Rating           int    `json:"rating"`
	Review           string `json:"review"`
	CreatedTimestamp int64  `json:"created_timestamp"`
}

type reviewsResponse struct {
	Count   int             `json:"count"`
	Results []reviewPayload `json:"results"`
}
