package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shrinkray-io/shrinkray/internal/app/model"
	"github.com/shrinkray-io/shrinkray/internal/app/service"
	"go.uber.org/zap"
)

const healthPingTimeout = 2 * time.Second

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger    *zap.Logger
	Shortener service.ShortenerService
	Analytics service.AnalyticsService
	Cache     service.Cache
	Postgres  *pgxpool.Pool
	// Production hides internal error detail from clients.
	Production bool
}

// APIHandler implements the JSON API endpoints.
type APIHandler struct {
	logger     *zap.Logger
	shortener  service.ShortenerService
	analytics  service.AnalyticsService
	cache      service.Cache
	postgres   *pgxpool.Pool
	production bool
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:     logger,
		shortener:  deps.Shortener,
		analytics:  deps.Analytics,
		cache:      deps.Cache,
		postgres:   deps.Postgres,
		production: deps.Production,
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		api.Post("/shorten", h.Shorten)
		api.Get("/analytics/:shortCode", h.GetAnalytics)
		api.Get("/urls", h.ListURLs)
		api.Get("/health", h.Health)
	}
}

// ShortenRequest is the request body for POST /api/shorten.
type ShortenRequest struct {
	OriginalURL string `json:"originalUrl"`
	CustomAlias string `json:"customAlias,omitempty"`
}

// ShortenResponse is the response body for POST /api/shorten.
type ShortenResponse struct {
	Message   string `json:"message"`
	ShortURL  string `json:"shortUrl"`
	ShortCode string `json:"shortCode"`
	IsCustom  bool   `json:"isCustom"`
}

// Shorten handles POST /api/shorten.
func (h *APIHandler) Shorten(c *fiber.Ctx) error {
	var req ShortenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.OriginalURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "URL is required",
		})
	}

	link, created, err := h.shortener.Create(userContext(c), req.OriginalURL, req.CustomAlias)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidURL),
			errors.Is(err, service.ErrInvalidAlias),
			errors.Is(err, service.ErrAliasTaken):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		default:
			h.logger.Error("failed to create short link", zap.Error(err))
			return h.internalError(c, err)
		}
	}

	message := "Short URL created successfully"
	status := fiber.StatusCreated
	if !created {
		message = "URL already shortened"
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(ShortenResponse{
		Message:   message,
		ShortURL:  link.ShortURL,
		ShortCode: link.ShortCode,
		IsCustom:  link.IsCustom,
	})
}

// GetAnalytics handles GET /api/analytics/:shortCode.
func (h *APIHandler) GetAnalytics(c *fiber.Ctx) error {
	code := c.Params("shortCode")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "short code is required",
		})
	}

	stats, err := h.analytics.GetAnalytics(userContext(c), code)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "URL not found",
			})
		}
		h.logger.Error("failed to load analytics", zap.Error(err), zap.String("code", code))
		return h.internalError(c, err)
	}

	return c.JSON(stats)
}

// ListURLs handles GET /api/urls.
func (h *APIHandler) ListURLs(c *fiber.Ctx) error {
	links, err := h.shortener.ListRecent(userContext(c), 20)
	if err != nil {
		h.logger.Error("failed to list urls", zap.Error(err))
		return h.internalError(c, err)
	}

	if links == nil {
		links = []model.ShortLink{}
	}
	return c.JSON(fiber.Map{"urls": links})
}

// Health handles GET /api/health.
func (h *APIHandler) Health(c *fiber.Ctx) error {
	databaseConnected := false
	if h.postgres != nil {
		ctx, cancel := context.WithTimeout(userContext(c), healthPingTimeout)
		defer cancel()
		databaseConnected = h.postgres.Ping(ctx) == nil
	}

	cacheConnected := h.cache != nil && h.cache.Available()

	return c.JSON(fiber.Map{
		"status":            "OK",
		"cacheConnected":    cacheConnected,
		"databaseConnected": databaseConnected,
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *APIHandler) internalError(c *fiber.Ctx, err error) error {
	message := "Something went wrong!"
	if !h.production {
		message = err.Error()
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": message,
	})
}

func userContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
