package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shrinkray-io/shrinkray/internal/app/model"
	"github.com/shrinkray-io/shrinkray/internal/app/repository"
)

type mockLinkRepository struct {
	insertFn      func(ctx context.Context, link *model.ShortLink) error
	findCodeFn    func(ctx context.Context, code string) (*model.ShortLink, error)
	findURLFn     func(ctx context.Context, originalURL string) (*model.ShortLink, error)
	incrementFn   func(ctx context.Context, code string) error
	listRecentFn  func(ctx context.Context, limit int) ([]model.ShortLink, error)
	listCodesFn   func(ctx context.Context) ([]string, error)
	deleteExpFn   func(ctx context.Context, now time.Time) (int64, error)
}

func (m *mockLinkRepository) Insert(ctx context.Context, link *model.ShortLink) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, link)
	}
	return nil
}

func (m *mockLinkRepository) FindByCode(ctx context.Context, code string) (*model.ShortLink, error) {
	if m.findCodeFn != nil {
		return m.findCodeFn(ctx, code)
	}
	return nil, repository.ErrLinkNotFound
}

func (m *mockLinkRepository) FindByOriginalURL(ctx context.Context, originalURL string) (*model.ShortLink, error) {
	if m.findURLFn != nil {
		return m.findURLFn(ctx, originalURL)
	}
	return nil, repository.ErrLinkNotFound
}

func (m *mockLinkRepository) IncrementClicksAndTouch(ctx context.Context, code string) error {
	if m.incrementFn != nil {
		return m.incrementFn(ctx, code)
	}
	return nil
}

func (m *mockLinkRepository) ListRecent(ctx context.Context, limit int) ([]model.ShortLink, error) {
	if m.listRecentFn != nil {
		return m.listRecentFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockLinkRepository) ListCodes(ctx context.Context) ([]string, error) {
	if m.listCodesFn != nil {
		return m.listCodesFn(ctx)
	}
	return nil, nil
}

func (m *mockLinkRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if m.deleteExpFn != nil {
		return m.deleteExpFn(ctx, now)
	}
	return 0, nil
}

// fakeCache is an in-memory stand-in for the fail-soft facade. When disabled
// it behaves like the real facade without a reachable Redis.
type fakeCache struct {
	mu       sync.Mutex
	data     map[string][]byte
	disabled bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (f *fakeCache) Get(ctx context.Context, key string, dest interface{}) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disabled {
		return false
	}
	raw, ok := f.data[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disabled {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	f.data[key] = raw
}

func (f *fakeCache) Delete(ctx context.Context, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
}

func (f *fakeCache) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.disabled
}

type chanSink struct {
	events chan *model.ClickEvent
}

func newChanSink() *chanSink {
	return &chanSink{events: make(chan *model.ClickEvent, 16)}
}

func (s *chanSink) Record(event *model.ClickEvent) error {
	s.events <- event
	return nil
}

func (s *chanSink) wait(t *testing.T) *model.ClickEvent {
	t.Helper()
	select {
	case ev := <-s.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for click event")
		return nil
	}
}

func newTestShortener(repo repository.LinkRepository, cache Cache, sink ClickSink) ShortenerService {
	return NewShortenerService(ShortenerDeps{
		Links:   repo,
		Cache:   cache,
		Clicks:  sink,
		BaseURL: "http://host",
	})
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func TestCreate_GeneratesSixCharCode(t *testing.T) {
	var inserted *model.ShortLink
	repo := &mockLinkRepository{
		insertFn: func(ctx context.Context, link *model.ShortLink) error {
			inserted = link
			return nil
		},
	}
	cache := newFakeCache()
	svc := newTestShortener(repo, cache, nil)

	link, created, err := svc.Create(context.Background(), "https://example.com/a", "")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if !created {
		t.Fatal("expected a new record")
	}
	if inserted == nil {
		t.Fatal("expected an insert")
	}
	if len(link.ShortCode) != 6 {
		t.Fatalf("expected 6-char code, got %q", link.ShortCode)
	}
	for _, c := range link.ShortCode {
		if !strings.ContainsRune(codeAlphabet, c) {
			t.Fatalf("code %q contains character outside [A-Za-z0-9]", link.ShortCode)
		}
	}
	if link.ShortURL != "http://host/"+link.ShortCode {
		t.Fatalf("unexpected short url %q", link.ShortURL)
	}
	if link.IsCustom {
		t.Fatal("generated code must not be marked custom")
	}

	var proj model.LinkProjection
	if !cache.Get(context.Background(), model.URLCacheKey(link.ShortCode), &proj) {
		t.Fatal("expected cache to hold the redirect projection after create")
	}
	if proj.OriginalURL != "https://example.com/a" {
		t.Fatalf("cached projection holds %q", proj.OriginalURL)
	}
}

func TestCreate_IdempotentByOriginalURL(t *testing.T) {
	existing := &model.ShortLink{ShortCode: "Ab12Cd", OriginalURL: "https://example.com/a", ShortURL: "http://host/Ab12Cd"}
	inserts := 0
	repo := &mockLinkRepository{
		findURLFn: func(ctx context.Context, originalURL string) (*model.ShortLink, error) {
			return existing, nil
		},
		insertFn: func(ctx context.Context, link *model.ShortLink) error {
			inserts++
			return nil
		},
	}
	svc := newTestShortener(repo, newFakeCache(), nil)

	link, created, err := svc.Create(context.Background(), "https://example.com/a", "")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created {
		t.Fatal("expected existing record, not a new one")
	}
	if link.ShortCode != "Ab12Cd" {
		t.Fatalf("expected the original code back, got %q", link.ShortCode)
	}
	if inserts != 0 {
		t.Fatalf("expected no inserts, got %d", inserts)
	}
}

func TestCreate_InvalidURL(t *testing.T) {
	svc := newTestShortener(&mockLinkRepository{}, newFakeCache(), nil)

	for _, raw := range []string{"", "notaurl", "ftp://example.com", "http://"} {
		if _, _, err := svc.Create(context.Background(), raw, ""); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("Create(%q): expected ErrInvalidURL, got %v", raw, err)
		}
	}
}

func TestCreate_AliasTaken(t *testing.T) {
	repo := &mockLinkRepository{
		findCodeFn: func(ctx context.Context, code string) (*model.ShortLink, error) {
			return &model.ShortLink{ShortCode: code}, nil
		},
	}
	svc := newTestShortener(repo, newFakeCache(), nil)

	_, _, err := svc.Create(context.Background(), "https://example.com/a", "my-alias")
	if !errors.Is(err, ErrAliasTaken) {
		t.Fatalf("expected ErrAliasTaken, got %v", err)
	}
}

func TestCreate_AliasInvalid(t *testing.T) {
	svc := newTestShortener(&mockLinkRepository{}, newFakeCache(), nil)

	for _, alias := range []string{"ab", "has space", strings.Repeat("x", 21)} {
		if _, _, err := svc.Create(context.Background(), "https://example.com/a", alias); !errors.Is(err, ErrInvalidAlias) {
			t.Errorf("alias %q: expected ErrInvalidAlias, got %v", alias, err)
		}
	}
}

// When two creates race on the same alias, the store's unique index decides;
// the loser's duplicate error must surface as ErrAliasTaken.
func TestCreate_AliasLostRace(t *testing.T) {
	repo := &mockLinkRepository{
		insertFn: func(ctx context.Context, link *model.ShortLink) error {
			return repository.ErrDuplicateCode
		},
	}
	svc := newTestShortener(repo, newFakeCache(), nil)

	_, _, err := svc.Create(context.Background(), "https://example.com/a", "my-alias")
	if !errors.Is(err, ErrAliasTaken) {
		t.Fatalf("expected ErrAliasTaken, got %v", err)
	}
}

func TestCreate_RetriesOnDuplicateCode(t *testing.T) {
	attempts := 0
	repo := &mockLinkRepository{
		insertFn: func(ctx context.Context, link *model.ShortLink) error {
			attempts++
			if attempts <= 2 {
				return repository.ErrDuplicateCode
			}
			return nil
		},
	}
	svc := newTestShortener(repo, newFakeCache(), nil)

	_, created, err := svc.Create(context.Background(), "https://example.com/a", "")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if !created || attempts != 3 {
		t.Fatalf("expected success on third attempt, attempts=%d created=%v", attempts, created)
	}
}

func TestCreate_CodeSpaceExhausted(t *testing.T) {
	attempts := 0
	repo := &mockLinkRepository{
		insertFn: func(ctx context.Context, link *model.ShortLink) error {
			attempts++
			return repository.ErrDuplicateCode
		},
	}
	svc := newTestShortener(repo, newFakeCache(), nil)

	_, _, err := svc.Create(context.Background(), "https://example.com/a", "")
	if !errors.Is(err, ErrCodeSpaceExhausted) {
		t.Fatalf("expected ErrCodeSpaceExhausted, got %v", err)
	}
	if attempts > 10 {
		t.Fatalf("expected at most 10 insert attempts, got %d", attempts)
	}
}

func TestResolve_CacheMiss(t *testing.T) {
	increments := 0
	repo := &mockLinkRepository{
		findCodeFn: func(ctx context.Context, code string) (*model.ShortLink, error) {
			return &model.ShortLink{ShortCode: code, OriginalURL: "https://example.com/a"}, nil
		},
		incrementFn: func(ctx context.Context, code string) error {
			increments++
			return nil
		},
	}
	cache := newFakeCache()
	sink := newChanSink()
	svc := newTestShortener(repo, cache, sink)

	target, err := svc.Resolve(context.Background(), "Ab12Cd", ClickInfo{UserAgent: "curl/8.0"})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if target != "https://example.com/a" {
		t.Fatalf("unexpected redirect target %q", target)
	}
	if increments != 1 {
		t.Fatalf("expected exactly one synchronous click bump, got %d", increments)
	}

	var proj model.LinkProjection
	if !cache.Get(context.Background(), model.URLCacheKey("Ab12Cd"), &proj) {
		t.Fatal("expected cache repopulated after miss")
	}

	ev := sink.wait(t)
	if ev.Referrer != "Direct" {
		t.Fatalf("expected empty referrer to default to Direct, got %q", ev.Referrer)
	}
	if ev.ShortCode != "Ab12Cd" || ev.UserAgent != "curl/8.0" {
		t.Fatalf("unexpected click event %+v", ev)
	}
}

func TestResolve_CacheHit(t *testing.T) {
	bumped := make(chan string, 1)
	repo := &mockLinkRepository{
		findCodeFn: func(ctx context.Context, code string) (*model.ShortLink, error) {
			t.Fatal("store lookup must not happen on a cache hit")
			return nil, nil
		},
		incrementFn: func(ctx context.Context, code string) error {
			bumped <- code
			return nil
		},
	}
	cache := newFakeCache()
	cache.Set(context.Background(), model.URLCacheKey("Ab12Cd"), model.LinkProjection{
		OriginalURL: "https://example.com/a",
		ShortCode:   "Ab12Cd",
	}, time.Hour)
	sink := newChanSink()
	svc := newTestShortener(repo, cache, sink)

	target, err := svc.Resolve(context.Background(), "Ab12Cd", ClickInfo{Referrer: "google.com"})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if target != "https://example.com/a" {
		t.Fatalf("unexpected redirect target %q", target)
	}

	select {
	case code := <-bumped:
		if code != "Ab12Cd" {
			t.Fatalf("bumped wrong code %q", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async click bump")
	}

	if ev := sink.wait(t); ev.Referrer != "google.com" {
		t.Fatalf("expected referrer google.com, got %q", ev.Referrer)
	}
}

func TestResolve_NotFound(t *testing.T) {
	svc := newTestShortener(&mockLinkRepository{}, newFakeCache(), nil)

	_, err := svc.Resolve(context.Background(), "zzzzzz", ClickInfo{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// With the cache unavailable the resolve path must behave identically,
// just without the fast path.
func TestResolve_CacheDisabled(t *testing.T) {
	increments := 0
	repo := &mockLinkRepository{
		findCodeFn: func(ctx context.Context, code string) (*model.ShortLink, error) {
			return &model.ShortLink{ShortCode: code, OriginalURL: "https://example.com/a"}, nil
		},
		incrementFn: func(ctx context.Context, code string) error {
			increments++
			return nil
		},
	}
	cache := newFakeCache()
	cache.disabled = true
	svc := newTestShortener(repo, cache, nil)

	target, err := svc.Resolve(context.Background(), "Ab12Cd", ClickInfo{})
	if err != nil {
		t.Fatalf("Resolve with disabled cache returned error: %v", err)
	}
	if target != "https://example.com/a" {
		t.Fatalf("unexpected redirect target %q", target)
	}
	if increments != 1 {
		t.Fatalf("expected exactly one click bump, got %d", increments)
	}
}

func TestListRecent(t *testing.T) {
	repo := &mockLinkRepository{
		listRecentFn: func(ctx context.Context, limit int) ([]model.ShortLink, error) {
			if limit != 20 {
				t.Fatalf("expected limit 20, got %d", limit)
			}
			return []model.ShortLink{{ShortCode: "a"}, {ShortCode: "b"}}, nil
		},
	}
	svc := newTestShortener(repo, newFakeCache(), nil)

	links, err := svc.ListRecent(context.Background(), 20)
	if err != nil {
		t.Fatalf("ListRecent error: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
}
