package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shrinkray-io/shrinkray/internal/app/model"
	"github.com/shrinkray-io/shrinkray/internal/app/repository"
	"go.uber.org/zap"
)

const (
	// DefaultAnalyticsCacheTTL is short: analytics are read-heavy and
	// tolerate more staleness than redirect targets.
	DefaultAnalyticsCacheTTL = 5 * time.Minute

	recentClickLimit  = 10
	clicksByDayWindow = 7 * 24 * time.Hour
	topReferrerLimit  = 5
)

// Analytics is the assembled per-code analytics payload.
type Analytics struct {
	URL   AnalyticsURL  `json:"url"`
	Stats AnalyticsData `json:"analytics"`
}

// AnalyticsURL summarizes the short link itself.
type AnalyticsURL struct {
	OriginalURL  string     `json:"originalUrl"`
	ShortURL     string     `json:"shortUrl"`
	ShortCode    string     `json:"shortCode"`
	TotalClicks  int64      `json:"totalClicks"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastAccessed *time.Time `json:"lastAccessed"`
	IsCustom     bool       `json:"isCustom"`
}

// AnalyticsData carries the rolling statistics.
type AnalyticsData struct {
	RecentClicks []model.ClickEvent         `json:"recentClicks"`
	ClicksByDay  []repository.DayCount      `json:"clicksByDay"`
	TopReferrers []repository.ReferrerCount `json:"topReferrers"`
}

// AnalyticsService computes per-code click statistics.
type AnalyticsService interface {
	GetAnalytics(ctx context.Context, code string) (*Analytics, error)
}

// AnalyticsDeps bundles what the aggregator needs.
type AnalyticsDeps struct {
	Logger   *zap.Logger
	Links    repository.LinkRepository
	Clicks   repository.ClickEventRepository
	Cache    Cache
	CacheTTL time.Duration
}

type analyticsService struct {
	logger *zap.Logger
	links  repository.LinkRepository
	clicks repository.ClickEventRepository
	cache  Cache
	ttl    time.Duration
}

// NewAnalyticsService returns an AnalyticsService backed by the given
// repositories and cache facade.
func NewAnalyticsService(deps AnalyticsDeps) AnalyticsService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = DefaultAnalyticsCacheTTL
	}
	return &analyticsService{
		logger: logger,
		links:  deps.Links,
		clicks: deps.Clicks,
		cache:  deps.Cache,
		ttl:    ttl,
	}
}

func (s *analyticsService) GetAnalytics(ctx context.Context, code string) (*Analytics, error) {
	key := model.AnalyticsCacheKey(code)

	var cached Analytics
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	link, err := s.links.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load link: %w", err)
	}

	recent, err := s.clicks.ListRecent(ctx, code, recentClickLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent clicks: %w", err)
	}

	since := time.Now().UTC().Add(-clicksByDayWindow)
	byDay, err := s.clicks.CountByDay(ctx, code, since)
	if err != nil {
		return nil, fmt.Errorf("count clicks by day: %w", err)
	}

	referrers, err := s.clicks.TopReferrers(ctx, code, topReferrerLimit)
	if err != nil {
		return nil, fmt.Errorf("top referrers: %w", err)
	}

	result := &Analytics{
		URL: AnalyticsURL{
			OriginalURL:  link.OriginalURL,
			ShortURL:     link.ShortURL,
			ShortCode:    link.ShortCode,
			TotalClicks:  link.Clicks,
			CreatedAt:    link.CreatedAt,
			LastAccessed: link.LastAccessed,
			IsCustom:     link.IsCustom,
		},
		Stats: AnalyticsData{
			RecentClicks: recent,
			ClicksByDay:  byDay,
			TopReferrers: referrers,
		},
	}

	s.cache.Set(ctx, key, result, s.ttl)
	return result, nil
}
