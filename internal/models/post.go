// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/datatypes"
)

// Post statuses.
const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
)

// Post categories.
const (
	CategoryDailyNews   = "daily-news"
	CategoryStockMarket = "stock-market"
	CategoryAI          = "ai"
	CategoryTechnology  = "technology"
	CategoryBusiness    = "business"
)

// Categories lists every accepted post category.
var Categories = []string{
	CategoryDailyNews,
	CategoryStockMarket,
	CategoryAI,
	CategoryTechnology,
	CategoryBusiness,
}

// ValidCategory reports whether c is one of Categories.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known post status.
func ValidStatus(s string) bool {
	return s == PostStatusDraft || s == PostStatusPublished
}

// ViewLog maps a visitor key ("user:<id>" or "ip:<addr>") to the unix
// millisecond timestamp of that visitor's last counted view.
type ViewLog map[string]int64

// Post represents a blog post.
type Post struct {
	ID       uint                        `gorm:"primaryKey" json:"id"`
	Title    string                      `gorm:"size:300;not null" json:"title"`
	Content  string                      `gorm:"type:text;not null" json:"content"`
	Excerpt  string                      `gorm:"type:text" json:"excerpt"`
	Tags     datatypes.JSONSlice[string] `json:"tags"`
	Category string                      `gorm:"size:32;not null;default:technology;index" json:"category"`
	Status   string                      `gorm:"size:16;not null;default:draft;index" json:"status"`
	// Published mirrors the legacy boolean flag. Older rows may carry it
	// without a matching status.
	Published   bool                        `gorm:"not null;default:false" json:"published"`
	AuthorID    uint                        `gorm:"not null;index" json:"authorId"`
	AuthorName  string                      `json:"authorName"`
	AuthorEmail string                      `json:"authorEmail"`
	ImageURL    string                      `json:"imageUrl,omitempty"`
	Views       int                         `gorm:"not null;default:0" json:"views"`
	Likes       int                         `gorm:"not null;default:0" json:"likes"`
	RecentViews datatypes.JSONType[ViewLog] `json:"-"`
	// Liked indicates whether the requesting user liked this post (computed)
	Liked       bool       `gorm:"-" json:"liked"`
	CreatedAt   time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	PublishedAt *time.Time `json:"publishedAt"`
}

// IsPublished reports whether the post is publicly visible. Either the status
// or the legacy flag is sufficient.
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished || p.Published
}

// ViewLog returns the post's visitor map, never nil.
func (p *Post) ViewLog() ViewLog {
	log := p.RecentViews.Data()
	if log == nil {
		log = ViewLog{}
	}
	return log
}
