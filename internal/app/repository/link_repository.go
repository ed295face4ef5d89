package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shrinkray-io/shrinkray/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrLinkNotFound signals that the requested short link does not exist
	// (or has expired, which reads treat the same way).
	ErrLinkNotFound = errors.New("link not found")

	// ErrDuplicateCode signals a unique-index collision on short_code.
	// Callers treat it as "pick another code", not as a fatal failure.
	ErrDuplicateCode = errors.New("short code already exists")
)

// LinkRepository defines the data access contract for short links.
type LinkRepository interface {
	Insert(ctx context.Context, link *model.ShortLink) error
	FindByCode(ctx context.Context, code string) (*model.ShortLink, error)
	FindByOriginalURL(ctx context.Context, originalURL string) (*model.ShortLink, error)
	IncrementClicksAndTouch(ctx context.Context, code string) error
	ListRecent(ctx context.Context, limit int) ([]model.ShortLink, error)
	ListCodes(ctx context.Context) ([]string, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a GORM-backed LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

// notExpired filters out rows whose expires_at has passed. The sweeper deletes
// them eventually; reads must never see them in the meantime.
func notExpired(db *gorm.DB) *gorm.DB {
	return db.Where("expires_at IS NULL OR expires_at > ?", time.Now().UTC())
}

func (r *linkRepository) Insert(ctx context.Context, link *model.ShortLink) error {
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return err
	}
	return nil
}

func (r *linkRepository) FindByCode(ctx context.Context, code string) (*model.ShortLink, error) {
	var link model.ShortLink
	err := r.db.WithContext(ctx).
		Scopes(notExpired).
		Where("short_code = ?", code).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) FindByOriginalURL(ctx context.Context, originalURL string) (*model.ShortLink, error) {
	var link model.ShortLink
	err := r.db.WithContext(ctx).
		Scopes(notExpired).
		Where("original_url = ?", originalURL).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

// IncrementClicksAndTouch bumps the click counter and last_accessed in a
// single atomic UPDATE, so concurrent resolves never lose increments and a
// cancelled caller can only skip the whole statement, never half of it.
func (r *linkRepository) IncrementClicksAndTouch(ctx context.Context, code string) error {
	result := r.db.WithContext(ctx).
		Model(&model.ShortLink{}).
		Scopes(notExpired).
		Where("short_code = ?", code).
		Updates(map[string]interface{}{
			"clicks":        gorm.Expr("clicks + 1"),
			"last_accessed": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func (r *linkRepository) ListRecent(ctx context.Context, limit int) ([]model.ShortLink, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var result []model.ShortLink
	if err := r.db.WithContext(ctx).
		Scopes(notExpired).
		Order("created_at DESC").
		Limit(limit).
		Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

// ListCodes returns every non-expired short code, used to seed the
// code pre-screen filter at startup.
func (r *linkRepository) ListCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := r.db.WithContext(ctx).
		Model(&model.ShortLink{}).
		Scopes(notExpired).
		Pluck("short_code", &codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

// DeleteExpired physically removes links whose expires_at has passed.
func (r *linkRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now.UTC()).
		Delete(&model.ShortLink{})
	return result.RowsAffected, result.Error
}

// isUniqueViolation recognizes Postgres unique-index violations (SQLSTATE
// 23505) whether or not GORM has already translated them.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
