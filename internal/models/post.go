package models

import "gorm.io/gorm"

// Post is a content record owned exclusively by its author.
type Post struct {
	gorm.Model
	UserID   uint   `gorm:"not null;index"`
	Content  string `gorm:"not null"`
	ImageURL string `gorm:"size:512"`

	User User `gorm:"foreignKey:UserID"`
}
