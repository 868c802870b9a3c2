package models

import "gorm.io/gorm"

// Comment is append-only from the application's point of view: there is no
// user-facing edit or delete flow.
type Comment struct {
	gorm.Model
	PostID  uint   `gorm:"not null;index"`
	UserID  uint   `gorm:"not null;index"`
	Content string `gorm:"not null"`

	User User `gorm:"foreignKey:UserID"`
}
