package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shrinkray-io/shrinkray/internal/app/model"
	"github.com/shrinkray-io/shrinkray/internal/app/service"
)

type mockShortener struct {
	createFn  func(ctx context.Context, originalURL, customAlias string) (*model.ShortLink, bool, error)
	resolveFn func(ctx context.Context, code string, click service.ClickInfo) (string, error)
	listFn    func(ctx context.Context, limit int) ([]model.ShortLink, error)
}

func (m *mockShortener) Create(ctx context.Context, originalURL, customAlias string) (*model.ShortLink, bool, error) {
	if m.createFn != nil {
		return m.createFn(ctx, originalURL, customAlias)
	}
	return nil, false, service.ErrInvalidURL
}

func (m *mockShortener) Resolve(ctx context.Context, code string, click service.ClickInfo) (string, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, code, click)
	}
	return "", service.ErrNotFound
}

func (m *mockShortener) ListRecent(ctx context.Context, limit int) ([]model.ShortLink, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit)
	}
	return nil, nil
}

type mockAnalytics struct {
	getFn func(ctx context.Context, code string) (*service.Analytics, error)
}

func (m *mockAnalytics) GetAnalytics(ctx context.Context, code string) (*service.Analytics, error) {
	if m.getFn != nil {
		return m.getFn(ctx, code)
	}
	return nil, service.ErrNotFound
}

func newTestApp(shortener service.ShortenerService, analytics service.AnalyticsService) *fiber.App {
	app := fiber.New()
	NewAPIHandler(APIDeps{Shortener: shortener, Analytics: analytics}).Register(app)
	// Same ordering as the server: the catch-all redirect goes last.
	NewRedirectHandler(RedirectDeps{Shortener: shortener}).Register(app)
	return app
}

func TestShorten_Created(t *testing.T) {
	shortener := &mockShortener{
		createFn: func(ctx context.Context, originalURL, customAlias string) (*model.ShortLink, bool, error) {
			return &model.ShortLink{
				ShortCode:   "Ab12Cd",
				OriginalURL: originalURL,
				ShortURL:    "http://host/Ab12Cd",
			}, true, nil
		},
	}
	app := newTestApp(shortener, &mockAnalytics{})

	body := bytes.NewBufferString(`{"originalUrl":"https://example.com/a"}`)
	req := httptest.NewRequest(fiber.MethodPost, "/api/shorten", body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var got ShortenResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ShortCode != "Ab12Cd" || got.ShortURL != "http://host/Ab12Cd" {
		t.Fatalf("unexpected response %+v", got)
	}
}

func TestShorten_ExistingReturns200(t *testing.T) {
	shortener := &mockShortener{
		createFn: func(ctx context.Context, originalURL, customAlias string) (*model.ShortLink, bool, error) {
			return &model.ShortLink{ShortCode: "Ab12Cd", ShortURL: "http://host/Ab12Cd"}, false, nil
		},
	}
	app := newTestApp(shortener, &mockAnalytics{})

	body := bytes.NewBufferString(`{"originalUrl":"https://example.com/a"}`)
	req := httptest.NewRequest(fiber.MethodPost, "/api/shorten", body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for an already shortened URL, got %d", resp.StatusCode)
	}
}

func TestShorten_ValidationErrors(t *testing.T) {
	shortener := &mockShortener{
		createFn: func(ctx context.Context, originalURL, customAlias string) (*model.ShortLink, bool, error) {
			if customAlias != "" {
				return nil, false, service.ErrAliasTaken
			}
			return nil, false, service.ErrInvalidURL
		},
	}
	app := newTestApp(shortener, &mockAnalytics{})

	for _, body := range []string{
		`{"originalUrl":"notaurl"}`,
		`{"originalUrl":"https://example.com/a","customAlias":"taken"}`,
		`{"originalUrl":""}`,
	} {
		req := httptest.NewRequest(fiber.MethodPost, "/api/shorten", bytes.NewBufferString(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, resp.StatusCode)
		}
	}
}

func TestAnalytics_NotFound(t *testing.T) {
	app := newTestApp(&mockShortener{}, &mockAnalytics{})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/analytics/zzzzzz", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestListURLs(t *testing.T) {
	shortener := &mockShortener{
		listFn: func(ctx context.Context, limit int) ([]model.ShortLink, error) {
			if limit != 20 {
				t.Fatalf("expected limit 20, got %d", limit)
			}
			return []model.ShortLink{{ShortCode: "a"}, {ShortCode: "b"}}, nil
		},
	}
	app := newTestApp(shortener, &mockAnalytics{})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/urls", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var got struct {
		URLs []model.ShortLink `json:"urls"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got.URLs) != 2 {
		t.Fatalf("expected 2 urls, got %d", len(got.URLs))
	}
}

func TestHealth_WithoutBackends(t *testing.T) {
	app := newTestApp(&mockShortener{}, &mockAnalytics{})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/health", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var got struct {
		Status            string `json:"status"`
		CacheConnected    bool   `json:"cacheConnected"`
		DatabaseConnected bool   `json:"databaseConnected"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status != "OK" || got.CacheConnected || got.DatabaseConnected {
		t.Fatalf("unexpected health payload %+v", got)
	}
}

func TestRedirect(t *testing.T) {
	var captured service.ClickInfo
	shortener := &mockShortener{
		resolveFn: func(ctx context.Context, code string, click service.ClickInfo) (string, error) {
			if code != "Ab12Cd" {
				return "", service.ErrNotFound
			}
			captured = click
			return "https://example.com/a", nil
		},
	}
	app := newTestApp(shortener, &mockAnalytics{})

	req := httptest.NewRequest(fiber.MethodGet, "/Ab12Cd", nil)
	req.Header.Set(fiber.HeaderReferer, "google.com")
	req.Header.Set("User-Agent", "curl/8.0")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get(fiber.HeaderLocation); loc != "https://example.com/a" {
		t.Fatalf("expected redirect to original URL, got %q", loc)
	}
	if captured.Referrer != "google.com" || captured.UserAgent != "curl/8.0" {
		t.Fatalf("click info not captured: %+v", captured)
	}

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/zzzzzz", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 for unknown code, got %d", resp.StatusCode)
	}
}

// API routes must keep priority over the catch-all short-code route.
func TestRoutePriority(t *testing.T) {
	shortener := &mockShortener{
		resolveFn: func(ctx context.Context, code string, click service.ClickInfo) (string, error) {
			t.Fatalf("redirect handler must not receive %q", code)
			return "", nil
		},
	}
	app := newTestApp(shortener, &mockAnalytics{})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/urls", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected /api/urls to hit the API handler, got %d", resp.StatusCode)
	}
}
