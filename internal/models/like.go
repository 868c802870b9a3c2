package models

import "time"

// Like joins a user to a post they liked. The composite unique index keeps at
// most one row per (post, user) pair; no soft delete, an unlike removes the
// row for real so a later re-like can insert again.
type Like struct {
	ID        uint `gorm:"primaryKey"`
	PostID    uint `gorm:"not null;uniqueIndex:idx_likes_post_user"`
	UserID    uint `gorm:"not null;uniqueIndex:idx_likes_post_user"`
	CreatedAt time.Time
}

func (Like) TableName() string { return "likes" }
