package api

import (
	"net/http"

	"github.com/ayo6706/ussd-relay/internal/api/handler"
	"github.com/ayo6706/ussd-relay/internal/api/middleware"
	"github.com/ayo6706/ussd-relay/internal/api/spec"
	"github.com/ayo6706/ussd-relay/internal/domain"
	"github.com/ayo6706/ussd-relay/internal/idempotency"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Logger       *zap.Logger
	Auth         *middleware.Authenticator
	DeviceAPIKey string
	Idempotency  *idempotency.Store
	DB           handler.Pinger
	Redis        redis.Cmdable

	Users      handler.UserStore
	Transfers  handler.TransferService
	Balances   handler.BalanceRequester
	Dispatcher handler.Dispatcher
	Executor   handler.BalanceExecutor
	Queue      handler.QueueReporter

	PublicRateLimitRPS int
	AuthRateLimitRPS   int
	DeviceRateLimitRPS int
}

type Router struct {
	deps Deps
}

func NewRouter(deps Deps) *Router {
	if deps.Logger == nil {
		deps.Logger = zap.L()
	}
	return &Router{deps: deps}
}

func (api *Router) Routes() chi.Router {
	d := api.deps
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(d.Logger))
	r.Use(middleware.RecoverMiddleware(d.Logger))
	r.Use(middleware.MetricsMiddleware)

	healthHandler := handler.NewHealthHandler(d.DB, d.Redis)
	userHandler := handler.NewUserHandler(d.Users)
	authHandler := handler.NewAuthHandler(d.Users, d.Auth)
	transferHandler := handler.NewTransferHandler(d.Transfers)
	balanceHandler := handler.NewBalanceHandler(d.Balances)
	deviceHandler := handler.NewDeviceHandler(d.Dispatcher, d.Executor)
	adminHandler := handler.NewAdminHandler(d.Queue)

	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/docs", http.RedirectHandler("/docs/index.html", http.StatusMovedPermanently).ServeHTTP)
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(d.PublicRateLimitRPS))
		r.Post("/v1/users", userHandler.CreateUser)
		r.Post("/v1/auth/login", authHandler.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(d.Auth.Middleware)
		r.Use(middleware.AuthRateLimiter(d.AuthRateLimitRPS))

		r.With(middleware.IdempotencyMiddleware(d.Idempotency, d.Logger)).Post("/v1/transfers", transferHandler.Create)
		r.Get("/v1/transfers", transferHandler.List)
		r.Get("/v1/transfers/{id}", transferHandler.Get)

		r.Post("/v1/balance-inquiries", balanceHandler.Create)
		r.Delete("/v1/balance-inquiries", balanceHandler.Cancel)

		r.With(middleware.RequireRole(domain.RoleAdmin)).Get("/v1/admin/queue", adminHandler.Queue)
	})

	r.Route("/v1/device", func(r chi.Router) {
		r.Use(middleware.DeviceAuthMiddleware(d.DeviceAPIKey))
		r.Use(middleware.DeviceRateLimiter(d.DeviceRateLimitRPS))

		r.Post("/transfers/claim", deviceHandler.ClaimTransfer)
		r.Post("/transfers/{id}/result", deviceHandler.ReportTransfer)
		r.Post("/balance-jobs/claim", deviceHandler.ClaimNextBalance)
		r.Post("/balance-jobs/{ownerID}/claim", deviceHandler.ClaimOwnerBalance)
		r.Post("/balance-jobs/{ownerID}/result", deviceHandler.ReportBalance)
	})

	return r
}
