package models

import "gorm.io/gorm"

// User is a profile record. It is created at registration, mutated only by
// its owner, and never hard-deleted by normal user flows.
type User struct {
	gorm.Model
	Username     string `gorm:"size:255;unique;not null"`
	Email        string `gorm:"size:255;unique;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	FullName     string `gorm:"size:255"`
	Bio          string
	AvatarURL    string `gorm:"size:512"`
}
