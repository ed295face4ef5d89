package model

import "time"

// ClickEvent records a single visit to a short link. Events are immutable
// once written; the short code is a soft reference and orphaned events are
// harmless for per-code aggregation.
type ClickEvent struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	ShortCode string    `json:"shortCode" gorm:"size:32;not null;index:idx_click_code_ts,priority:1"`
	Referrer  string    `json:"referrer" gorm:"size:512;not null;default:'Direct'"`
	UserAgent string    `json:"userAgent,omitempty" gorm:"size:512"`
	IPAddress string    `json:"ipAddress,omitempty" gorm:"size:64"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index:idx_click_code_ts,priority:2,sort:desc"`
}

func (ClickEvent) TableName() string { return "click_events" }

const (
	ClickStreamName     = "CLICKS"
	ClickStreamSubject  = "clicks.events"
	ClickConsumerName   = "click-writer"
	ClickStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
