package models

import "time"

// FriendEvent outbox statuses.
const (
	EventPending int8 = 0
	EventSent    int8 = 1
	EventFailed  int8 = 2
)

// FriendEvent is an outbox row recorded in the same transaction as a
// friend-edge mutation and drained asynchronously to the event stream.
type FriendEvent struct {
	ID         uint64 `gorm:"primaryKey"`
	EventType  string `gorm:"size:32;not null"`
	SenderID   uint   `gorm:"not null"`
	ReceiverID uint   `gorm:"not null"`
	Payload    string `gorm:"type:text;not null"`
	Status     int8   `gorm:"not null;default:0"`
	Retry      int    `gorm:"not null;default:0"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (FriendEvent) TableName() string { return "friend_events" }
