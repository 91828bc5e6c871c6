package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"etsy-sync-core/internal/application"
	"etsy-sync-core/internal/application/event_handlers"
	"etsy-sync-core/internal/domain"
	"etsy-sync-core/internal/infrastructure/etsy"
	"etsy-sync-core/internal/infrastructure/pubsub"
	"etsy-sync-core/internal/infrastructure/repository"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("⚠️  Warning: .env file not found")
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		level, err := zerolog.ParseLevel(lvl)
		if err != nil {
			logger.Warn().Str("level", lvl).Msg("Unknown LOG_LEVEL, using info")
		} else {
			logger = logger.Level(level)
		}
	}

	// Get configuration from environment
	redirectURI := os.Getenv("ETSY_REDIRECT_URI")
	if redirectURI == "" {
		redirectURI = "http://localhost:8080/oauth/callback"
	}

	pollInterval := time.Duration(getEnvInt(logger, "POLL_INTERVAL_SECONDS", 300, 60, 3600)) * time.Second
	stockThreshold := getEnvInt(logger, "STOCK_THRESHOLD", 5, 1, 100)
	fetchLimit := getEnvInt(logger, "API_FETCH_LIMIT", 10, 1, 100)

	allowedOrigins := []string{"*"}
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		allowedOrigins = strings.Split(origins, ",")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize repositories
	tokenRepo := repository.NewMemoryTokenRepository()
	sessionRepo := repository.NewMemorySessionRepository()
	registrationRepo := repository.NewMemoryRegistrationRepository()

	// Initialize the Etsy clients
	authClient := etsy.NewAuthClient(tokenRepo, sessionRepo, redirectURI, logger)
	apiClient := etsy.NewClient(authClient, logger)

	// Initialize pub/sub for snapshot and event subscribers
	syncPubSub := pubsub.NewSyncPubSub(logger)

	// Initialize application services
	snapshotBuilder := application.NewSnapshotBuilder(apiClient, fetchLimit, logger)
	coordinator := application.NewCoordinator(snapshotBuilder, syncPubSub, registrationRepo, logger)
	shopService := application.NewShopService(
		authClient,
		registrationRepo,
		tokenRepo,
		coordinator,
		pollInterval,
		stockThreshold,
		logger,
	)
	statsService := application.NewStatsService(coordinator, logger)

	// Initialize event dispatcher and register handlers
	eventDispatcher := application.NewEventDispatcher(logger)
	eventDispatcher.RegisterHandler(event_handlers.NewOrderHandler(logger))
	eventDispatcher.RegisterHandler(event_handlers.NewReviewHandler(logger))
	eventDispatcher.RegisterHandler(event_handlers.NewLowStockHandler(logger))

	// Route every published event through the dispatcher
	eventSub := syncPubSub.SubscribeEvents(ctx, nil)
	go func() {
		for event := range eventSub.Events {
			if err := eventDispatcher.Dispatch(ctx, event); err != nil {
				logger.Error().Err(err).Msg("Failed to dispatch event")
			}
		}
	}()

	if err := coordinator.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start sync coordinator")
	}

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	// Health check - must be public for monitoring
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// OAuth routes
	r.Get("/oauth/callback", oauthCallbackHandler(shopService, logger))

	// Shop management routes
	r.Route("/api/v1/shops", func(r chi.Router) {
		r.Post("/", addShopHandler(shopService, logger))
		r.Post("/select", selectShopHandler(shopService, logger))
		r.Get("/", listShopsHandler(shopService, logger))
		r.Delete("/{shopID}", removeShopHandler(shopService, logger))
		r.Patch("/{shopID}/interval", setIntervalHandler(shopService, logger))
		r.Patch("/{shopID}/threshold", setThresholdHandler(shopService, logger))
		r.Post("/{shopID}/refresh", forceRefreshHandler(shopService, logger))
		r.Get("/{shopID}/stats", shopStatsHandler(statsService, logger))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("port", port).Msg("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Server stopped with error")
	}

	coordinator.Stop()
	logger.Info().Msg("Shutdown complete")
}

// shopResponse is the wire shape of one shop registration.
type shopResponse struct {
	ShopID              int64      `json:"shop_id"`
	ShopName            string     `json:"shop_name"`
	Status              string     `json:"status"`
	PollIntervalSeconds int        `json:"poll_interval_seconds"`
	StockThreshold      int        `json:"stock_threshold"`
	CreatedAt           time.Time  `json:"created_at"`
	LastSyncedAt        *time.Time `json:"last_synced_at,omitempty"`
}

func toShopResponse(reg *domain.ShopRegistration) shopResponse {
	resp := shopResponse{
		ShopID:              reg.ShopID,
		ShopName:            reg.ShopName,
		Status:              string(reg.Status),
		PollIntervalSeconds: int(reg.PollInterval / time.Second),
		StockThreshold:      reg.StockThreshold,
		CreatedAt:           reg.CreatedAt,
	}
	if !reg.LastSyncedAt.IsZero() {
		synced := reg.LastSyncedAt
		resp.LastSyncedAt = &synced
	}
	return resp
}

// addShopHandler starts the authorization flow for a new shop connection
func addShopHandler(shopService *application.ShopService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ClientID     string `json:"client_id"`
			ClientSecret string `json:"client_secret"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}

		session, err := shopService.AddShop(r.Context(), req.ClientID, req.ClientSecret)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"session_id":    session.ID,
			"authorize_url": session.AuthorizeURL,
			"expires_at":    session.ExpiresAt,
		})
	}
}

// oauthCallbackHandler completes the authorization flow from the provider redirect
func oauthCallbackHandler(shopService *application.ShopService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if errParam := r.URL.Query().Get("error"); errParam != "" {
			logger.Warn().Str("error", errParam).Msg("Authorization denied by user")
			http.Error(w, "authorization denied: "+errParam, http.StatusBadRequest)
			return
		}

		code := r.URL.Query().Get("code")
		state := r.URL.Query().Get("state")
		if code == "" || state == "" {
			http.Error(w, "code and state parameters are required", http.StatusBadRequest)
			return
		}

		result, err := shopService.CompleteOAuthCallback(r.Context(), code, state)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		json.NewEncoder(w).Encode(result)
	}
}

// selectShopHandler resolves a multi-shop authorization onto one shop
func selectShopHandler(shopService *application.ShopService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SessionID string `json:"session_id"`
			ShopID    int64  `json:"shop_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}

		ref, err := shopService.SelectShop(r.Context(), req.SessionID, req.ShopID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"registered": ref,
		})
	}
}

// listShopsHandler returns every shop registration
func listShopsHandler(shopService *application.ShopService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		regs, err := shopService.ListShops(r.Context())
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		shops := make([]shopResponse, 0, len(regs))
		for _, reg := range regs {
			shops = append(shops, toShopResponse(reg))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"shops": shops,
		})
	}
}

// removeShopHandler disconnects a shop and discards its state
func removeShopHandler(shopService *application.ShopService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := shopIDParam(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := shopService.RemoveShop(r.Context(), shopID); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// setIntervalHandler updates a shop's poll cadence
func setIntervalHandler(shopService *application.ShopService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := shopIDParam(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var req struct {
			Seconds int `json:"seconds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}

		interval := time.Duration(req.Seconds) * time.Second
		if err := shopService.SetPollInterval(r.Context(), shopID, interval); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"shop_id": shopID,
			"seconds": req.Seconds,
		})
	}
}

// setThresholdHandler updates a shop's low-stock threshold
func setThresholdHandler(shopService *application.ShopService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := shopIDParam(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var req struct {
			Threshold int `json:"threshold"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}

		if err := shopService.SetLowStockThreshold(r.Context(), shopID, req.Threshold); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"shop_id":   shopID,
			"threshold": req.Threshold,
		})
	}
}

// forceRefreshHandler schedules an immediate poll for a shop
func forceRefreshHandler(shopService *application.ShopService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := shopIDParam(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := shopService.ForceRefresh(r.Context(), shopID); err != nil {
			writeServiceError(w, logger, err)
			return
		}

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{
			"scheduled": "true",
		})
	}
}

// shopStatsHandler returns a filtered view of a shop's last snapshot
func shopStatsHandler(statsService *application.StatsService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := shopIDParam(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		listingLimit, err := queryInt(r, "listings", 5)
		if err != nil {
			http.Error(w, "listings must be an integer", http.StatusBadRequest)
			return
		}
		transactionLimit, err := queryInt(r, "transactions", 10)
		if err != nil {
			http.Error(w, "transactions must be an integer", http.StatusBadRequest)
			return
		}

		view, err := statsService.GetShopStats(shopID, listingLimit, transactionLimit)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		if view == nil {
			http.Error(w, "no snapshot available yet", http.StatusNotFound)
			return
		}

		json.NewEncoder(w).Encode(view)
	}
}

// shopIDParam extracts the numeric shop id from the URL.
func shopIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "shopID")
	shopID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New("shopID must be a number")
	}
	return shopID, nil
}

// queryInt reads an integer query parameter, falling back to def when absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// getEnvInt reads an integer environment variable, falling back to def and
// clamping into [min, max].
func getEnvInt(logger zerolog.Logger, key string, def, min, max int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", raw).Msg("Invalid integer in environment, using default")
		return def
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// writeServiceError maps service failures onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var configErr *domain.ConfigError
	var authErr *domain.AuthError
	switch {
	case errors.Is(err, application.ErrShopNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &configErr):
		http.Error(w, configErr.Error(), http.StatusBadRequest)
	case errors.As(err, &authErr) && authErr.Reason == domain.AuthReasonInvalidState:
		http.Error(w, "authorization session is invalid or expired", http.StatusBadRequest)
	case errors.As(err, &authErr):
		logger.Error().Err(err).Msg("Authorization failed")
		http.Error(w, "authorization failed", http.StatusBadGateway)
	default:
		logger.Error().Err(err).Msg("Request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
