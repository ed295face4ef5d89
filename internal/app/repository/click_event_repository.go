package repository

import (
	"context"
	"time"

	"github.com/shrinkray-io/shrinkray/internal/app/model"
	"gorm.io/gorm"
)

// DayCount is one calendar-day bucket of click counts. The JSON field names
// follow the analytics payload the frontend already consumes.
type DayCount struct {
	Day   string `json:"_id" gorm:"column:day"`
	Count int64  `json:"count" gorm:"column:count"`
}

// ReferrerCount is one referrer bucket, count descending.
type ReferrerCount struct {
	Referrer string `json:"_id" gorm:"column:referrer"`
	Count    int64  `json:"count" gorm:"column:count"`
}

// ClickEventRepository defines the data access contract for click events.
type ClickEventRepository interface {
	Insert(ctx context.Context, event *model.ClickEvent) error
	ListRecent(ctx context.Context, code string, limit int) ([]model.ClickEvent, error)
	CountByDay(ctx context.Context, code string, since time.Time) ([]DayCount, error)
	TopReferrers(ctx context.Context, code string, limit int) ([]ReferrerCount, error)
}

type clickEventRepository struct {
	db *gorm.DB
}

// NewClickEventRepository returns a GORM-backed ClickEventRepository.
func NewClickEventRepository(db *gorm.DB) ClickEventRepository {
	return &clickEventRepository{db: db}
}

func (r *clickEventRepository) Insert(ctx context.Context, event *model.ClickEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *clickEventRepository) ListRecent(ctx context.Context, code string, limit int) ([]model.ClickEvent, error) {
	if limit <= 0 {
		limit = 10
	}

	var events []model.ClickEvent
	if err := r.db.WithContext(ctx).
		Where("short_code = ?", code).
		Order("timestamp DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// CountByDay buckets clicks by UTC calendar day since the given time,
// ascending by day.
func (r *clickEventRepository) CountByDay(ctx context.Context, code string, since time.Time) ([]DayCount, error) {
	var rows []DayCount
	err := r.db.WithContext(ctx).
		Model(&model.ClickEvent{}).
		Select(`to_char(timestamp AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*) AS count`).
		Where("short_code = ? AND timestamp >= ?", code, since.UTC()).
		Group("day").
		Order("day ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *clickEventRepository) TopReferrers(ctx context.Context, code string, limit int) ([]ReferrerCount, error) {
	if limit <= 0 {
		limit = 5
	}

	var rows []ReferrerCount
	err := r.db.WithContext(ctx).
		Model(&model.ClickEvent{}).
		Select("referrer, COUNT(*) AS count").
		Where("short_code = ?", code).
		Group("referrer").
		Order("count DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
