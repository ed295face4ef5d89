package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shrinkray-io/shrinkray/internal/app/service"
	inthttp "github.com/shrinkray-io/shrinkray/internal/http/handler"
	"github.com/shrinkray-io/shrinkray/internal/http/middleware"
	"go.uber.org/zap"
)

// Dependencies bundles infrastructure and services required by the HTTP server.
type Dependencies struct {
	Logger     *zap.Logger
	Postgres   *pgxpool.Pool
	Redis      *redis.Client
	Cache      service.Cache
	Shortener  service.ShortenerService
	Analytics  service.AnalyticsService
	Production bool
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	app := fiber.New()

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerMiddleware() {
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Logger(s.deps.Logger))
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.CORS())
	s.app.Use("/api", middleware.RateLimit(s.deps.Redis, middleware.DefaultRateLimitConfig(), s.deps.Logger))
}

func (s *Server) registerRoutes() {
	apiHandler := inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:     s.deps.Logger,
		Shortener:  s.deps.Shortener,
		Analytics:  s.deps.Analytics,
		Cache:      s.deps.Cache,
		Postgres:   s.deps.Postgres,
		Production: s.deps.Production,
	})
	apiHandler.Register(s.app)

	// Registered last: the catch-all short-code route must never shadow
	// the API surface.
	redirectHandler := inthttp.NewRedirectHandler(inthttp.RedirectDeps{
		Logger:     s.deps.Logger,
		Shortener:  s.deps.Shortener,
		Production: s.deps.Production,
	})
	redirectHandler.Register(s.app)
}
