package model

import "time"

// ShortLink is the core short-link entity stored in Postgres.
type ShortLink struct {
	ShortCode    string     `json:"shortCode" gorm:"primaryKey;size:32"`
	OriginalURL  string     `json:"originalUrl" gorm:"type:text;not null;index"`
	ShortURL     string     `json:"shortUrl" gorm:"type:text;not null"`
	Clicks       int64      `json:"clicks" gorm:"not null;default:0"`
	IsCustom     bool       `json:"isCustom" gorm:"not null;default:false"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	LastAccessed *time.Time `json:"lastAccessed"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty" gorm:"index"`
}

// TableName keeps the table name explicit rather than relying on pluralization.
func (ShortLink) TableName() string { return "short_links" }

// LinkProjection is the reduced view of a ShortLink kept in the cache under
// url:{code}. It carries only what a redirect needs and is always
// reconstructible from the store.
type LinkProjection struct {
	OriginalURL string `json:"originalUrl"`
	ShortCode   string `json:"shortCode"`
}

// URLCacheKey returns the cache key holding the redirect projection for code.
func URLCacheKey(code string) string { return "url:" + code }

// AnalyticsCacheKey returns the cache key holding assembled analytics for code.
func AnalyticsCacheKey(code string) string { return "analytics:" + code }
