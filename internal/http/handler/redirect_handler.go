package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shrinkray-io/shrinkray/internal/app/service"
	"go.uber.org/zap"
)

// RedirectDeps groups dependencies required by the redirect handler.
type RedirectDeps struct {
	Logger     *zap.Logger
	Shortener  service.ShortenerService
	Production bool
}

// RedirectHandler serves GET /:shortCode.
type RedirectHandler struct {
	logger     *zap.Logger
	shortener  service.ShortenerService
	production bool
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:     logger,
		shortener:  deps.Shortener,
		production: deps.Production,
	}
}

// Register wires the catch-all redirect route. It must run after the /api
// group so API paths keep priority.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/:shortCode", h.Resolve)
}

// Resolve handles GET /:shortCode and issues the 302 to the original URL.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	code := c.Params("shortCode")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "short code is required",
		})
	}

	click := service.ClickInfo{
		Referrer:  c.Get(fiber.HeaderReferer),
		UserAgent: c.Get("User-Agent"),
		IPAddress: c.IP(),
	}

	target, err := h.shortener.Resolve(userContext(c), code, click)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "URL not found",
			})
		}
		h.logger.Error("failed to resolve short link", zap.Error(err), zap.String("code", code))
		message := "Something went wrong!"
		if !h.production {
			message = err.Error()
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": message,
		})
	}

	h.logger.Debug("redirecting short link", zap.String("code", code), zap.String("target", target))
	return c.Redirect(target, fiber.StatusFound)
}
