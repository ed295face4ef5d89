package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shrinkray-io/shrinkray/internal/app/model"
	"github.com/shrinkray-io/shrinkray/internal/app/repository"
	"github.com/shrinkray-io/shrinkray/internal/app/shortcode"
	infraPrometheus "github.com/shrinkray-io/shrinkray/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	// DefaultURLCacheTTL covers the url:{code} redirect projection.
	DefaultURLCacheTTL = time.Hour

	// maxGenerateAttempts bounds the generate-insert loop; past it the code
	// space is treated as exhausted rather than retrying forever.
	maxGenerateAttempts = 10

	asyncOpTimeout = 10 * time.Second
)

// Cache is the subset of the cache facade the services need. All methods are
// fail-soft; implementations never return errors.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Available() bool
}

// ClickSink accepts click events for eventual persistence. Record may be
// called from detached goroutines and must not assume a request context.
type ClickSink interface {
	Record(event *model.ClickEvent) error
}

// ClickInfo carries the request attributes captured into a click event.
type ClickInfo struct {
	Referrer  string
	UserAgent string
	IPAddress string
}

// ShortenerService orchestrates create, resolve, and listing of short links.
type ShortenerService interface {
	// Create returns the link for originalURL, creating it if absent. The
	// bool reports whether a new record was inserted.
	Create(ctx context.Context, originalURL, customAlias string) (*model.ShortLink, bool, error)
	// Resolve returns the redirect target for code and records the click.
	Resolve(ctx context.Context, code string, click ClickInfo) (string, error)
	ListRecent(ctx context.Context, limit int) ([]model.ShortLink, error)
}

// ShortenerDeps bundles what the shortener needs.
type ShortenerDeps struct {
	Logger      *zap.Logger
	Links       repository.LinkRepository
	Cache       Cache
	Clicks      ClickSink
	Filter      *shortcode.Filter
	BaseURL     string
	URLCacheTTL time.Duration
}

type shortenerService struct {
	logger  *zap.Logger
	links   repository.LinkRepository
	cache   Cache
	clicks  ClickSink
	filter  *shortcode.Filter
	baseURL string
	ttl     time.Duration
}

// NewShortenerService returns a ShortenerService wired to the given
// repository, cache facade, and click sink.
func NewShortenerService(deps ShortenerDeps) ShortenerService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := deps.URLCacheTTL
	if ttl <= 0 {
		ttl = DefaultURLCacheTTL
	}
	filter := deps.Filter
	if filter == nil {
		filter = shortcode.NewFilter()
	}
	return &shortenerService{
		logger:  logger,
		links:   deps.Links,
		cache:   deps.Cache,
		clicks:  deps.Clicks,
		filter:  filter,
		baseURL: deps.BaseURL,
		ttl:     ttl,
	}
}

func (s *shortenerService) Create(ctx context.Context, originalURL, customAlias string) (*model.ShortLink, bool, error) {
	if !validURL(originalURL) {
		return nil, false, ErrInvalidURL
	}

	// Repeated submissions of the same URL return the first record unchanged.
	existing, err := s.links.FindByOriginalURL(ctx, originalURL)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrLinkNotFound) {
		return nil, false, fmt.Errorf("look up original url: %w", err)
	}

	if customAlias != "" {
		link, err := s.createWithAlias(ctx, originalURL, customAlias)
		if err != nil {
			return nil, false, err
		}
		s.finishInsert(ctx, link)
		return link, true, nil
	}

	link, err := s.createGenerated(ctx, originalURL)
	if err != nil {
		return nil, false, err
	}
	s.finishInsert(ctx, link)
	return link, true, nil
}

func (s *shortenerService) createWithAlias(ctx context.Context, originalURL, alias string) (*model.ShortLink, error) {
	if !shortcode.ValidAlias(alias) {
		return nil, ErrInvalidAlias
	}

	_, err := s.links.FindByCode(ctx, alias)
	if err == nil {
		return nil, ErrAliasTaken
	}
	if !errors.Is(err, repository.ErrLinkNotFound) {
		return nil, fmt.Errorf("check alias: %w", err)
	}

	link := s.newLink(originalURL, alias, true)
	if err := s.links.Insert(ctx, link); err != nil {
		// A concurrent create with the same alias won the unique index.
		if errors.Is(err, repository.ErrDuplicateCode) {
			return nil, ErrAliasTaken
		}
		return nil, fmt.Errorf("insert link: %w", err)
	}
	return link, nil
}

func (s *shortenerService) createGenerated(ctx context.Context, originalURL string) (*model.ShortLink, error) {
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := shortcode.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}

		// The filter catches most collisions without a store round trip.
		// False positives only cost a regeneration.
		if s.filter.MayContain(code) {
			continue
		}

		link := s.newLink(originalURL, code, false)
		err = s.links.Insert(ctx, link)
		if err == nil {
			return link, nil
		}
		if errors.Is(err, repository.ErrDuplicateCode) {
			s.filter.Add(code)
			continue
		}
		return nil, fmt.Errorf("insert link: %w", err)
	}
	return nil, ErrCodeSpaceExhausted
}

func (s *shortenerService) newLink(originalURL, code string, custom bool) *model.ShortLink {
	return &model.ShortLink{
		ShortCode:   code,
		OriginalURL: originalURL,
		ShortURL:    s.baseURL + "/" + code,
		IsCustom:    custom,
	}
}

func (s *shortenerService) finishInsert(ctx context.Context, link *model.ShortLink) {
	s.filter.Add(link.ShortCode)
	s.cache.Set(ctx, model.URLCacheKey(link.ShortCode), model.LinkProjection{
		OriginalURL: link.OriginalURL,
		ShortCode:   link.ShortCode,
	}, s.ttl)
	infraPrometheus.LinksCreated.Inc()
	s.logger.Debug("short link created",
		zap.String("code", link.ShortCode),
		zap.Bool("custom", link.IsCustom))
}

func (s *shortenerService) Resolve(ctx context.Context, code string, click ClickInfo) (string, error) {
	var proj model.LinkProjection
	if s.cache.Get(ctx, model.URLCacheKey(code), &proj) {
		infraPrometheus.CacheLookups.WithLabelValues(infraPrometheus.CacheHit).Inc()

		// Counter bump happens off the redirect path on a hit.
		go s.bumpClicks(code)
		s.recordClick(code, click)

		infraPrometheus.Redirects.Inc()
		return proj.OriginalURL, nil
	}
	infraPrometheus.CacheLookups.WithLabelValues(infraPrometheus.CacheMiss).Inc()

	link, err := s.links.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("load link: %w", err)
	}

	// Best-effort: the redirect is still served if the bump fails.
	if err := s.links.IncrementClicksAndTouch(ctx, code); err != nil {
		s.logger.Warn("failed to bump click counter", zap.String("code", code), zap.Error(err))
	}

	s.cache.Set(ctx, model.URLCacheKey(code), model.LinkProjection{
		OriginalURL: link.OriginalURL,
		ShortCode:   link.ShortCode,
	}, s.ttl)

	s.recordClick(code, click)

	infraPrometheus.Redirects.Inc()
	return link.OriginalURL, nil
}

// bumpClicks runs detached from the request; its lifetime and failures must
// never touch the caller's response path.
func (s *shortenerService) bumpClicks(code string) {
	ctx, cancel := context.WithTimeout(context.Background(), asyncOpTimeout)
	defer cancel()
	if err := s.links.IncrementClicksAndTouch(ctx, code); err != nil {
		s.logger.Warn("async click bump failed", zap.String("code", code), zap.Error(err))
	}
}

func (s *shortenerService) recordClick(code string, click ClickInfo) {
	if s.clicks == nil {
		return
	}

	referrer := click.Referrer
	if referrer == "" {
		referrer = "Direct"
	}
	event := &model.ClickEvent{
		ID:        uuid.New().String(),
		ShortCode: code,
		Referrer:  referrer,
		UserAgent: click.UserAgent,
		IPAddress: click.IPAddress,
		Timestamp: time.Now().UTC(),
	}

	go func() {
		if err := s.clicks.Record(event); err != nil {
			s.logger.Warn("failed to record click event",
				zap.String("code", code),
				zap.Error(err))
		}
	}()
}

func (s *shortenerService) ListRecent(ctx context.Context, limit int) ([]model.ShortLink, error) {
	links, err := s.links.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
