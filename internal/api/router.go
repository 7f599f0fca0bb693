package api

import (
	"net/http"

	"github.com/gbwallet/ledger/internal/api/handler"
	"github.com/gbwallet/ledger/internal/api/middleware"
	"github.com/gbwallet/ledger/internal/api/spec"
	"github.com/gbwallet/ledger/internal/config"
	"github.com/gbwallet/ledger/internal/idempotency"
	"github.com/gbwallet/ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type Router struct {
	cfg         *config.Config
	logger      *zap.Logger
	db          *pgxpool.Pool
	redis       redis.Cmdable
	idem        *idempotency.Store
	ledger      *service.LedgerService
	exchange    *service.ExchangeService
	marketplace *service.MarketplaceService
	ratings     *service.RatingService
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *pgxpool.Pool,
	redisClient redis.Cmdable,
	idem *idempotency.Store,
	ledger *service.LedgerService,
	exchange *service.ExchangeService,
	marketplace *service.MarketplaceService,
	ratings *service.RatingService,
) *Router {
	return &Router{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		redis:       redisClient,
		idem:        idem,
		ledger:      ledger,
		exchange:    exchange,
		marketplace: marketplace,
		ratings:     ratings,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	idem := middleware.IdempotencyMiddleware(api.idem, api.logger)

	authHandler := handler.NewAuthHandler(api.cfg.IsAdmin, 0)
	accountHandler := handler.NewAccountHandler(api.ledger)
	transferHandler := handler.NewTransferHandler(api.ledger)
	exchangeHandler := handler.NewExchangeHandler(api.exchange)
	marketHandler := handler.NewMarketplaceHandler(api.marketplace)
	ratingHandler := handler.NewRatingHandler(api.ratings, api.ledger, api.cfg.LeaderboardLimit)
	adminHandler := handler.NewAdminHandler(api.ledger)
	healthHandler := handler.NewHealthHandler(api.db, api.redis)

	// Operational endpoints
	r.Get("/healthz/live", healthHandler.Live)
	r.Get("/healthz/ready", healthHandler.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Post("/v1/auth/token", authHandler.Token)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		// Accounts
		r.Get("/v1/accounts/me", accountHandler.Me)
		r.Get("/v1/accounts/me/statement", accountHandler.Statement)
		r.Get("/v1/accounts/{id}", accountHandler.Get)
		r.Get("/v1/accounts/{id}/statement", accountHandler.Statement)

		// Value movement
		r.With(idem).Post("/v1/transfers", transferHandler.Create)
		r.With(idem).Post("/v1/exchanges", exchangeHandler.Create)

		// Marketplace
		r.Get("/v1/listings", marketHandler.List)
		r.Get("/v1/listings/{id}", marketHandler.Get)
		r.With(idem).Post("/v1/listings", marketHandler.Create)
		r.With(idem).Post("/v1/listings/{id}/purchase", marketHandler.Purchase)

		// Ratings and leaderboards
		r.Post("/v1/ratings", ratingHandler.Rate)
		r.Get("/v1/leaderboards/rating", ratingHandler.RatingLeaderboard)
		r.Get("/v1/leaderboards/balance", ratingHandler.BalanceLeaderboard)

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("admin"))
			r.Put("/v1/admin/accounts/{id}/balance", adminHandler.AdjustBalance)
			r.With(idem).Post("/v1/admin/transfers", transferHandler.FromSystem)
			r.With(idem).Post("/v1/admin/exchanges/chips-to-coins", exchangeHandler.ChipsToCoins)
			r.Delete("/v1/admin/listings/{id}", marketHandler.Remove)
			r.Get("/v1/admin/system-account", adminHandler.SystemAccount)
			r.Get("/v1/admin/chip-holdings", adminHandler.ChipHoldings)
		})
	})

	return r
}
