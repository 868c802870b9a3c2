package models

import (
	"time"

	"gorm.io/gorm"
)

// FriendRequestStatus is the state of a directed friend-request edge.
type FriendRequestStatus string

const (
	// StatusPending means the request was sent but not yet answered.
	StatusPending FriendRequestStatus = "pending"

	// StatusAccepted means the receiver accepted; the two users are friends.
	StatusAccepted FriendRequestStatus = "accepted"

	// StatusRejected means the receiver rejected the request. A rejected row
	// stays in place and blocks a re-send until the edge is removed.
	StatusRejected FriendRequestStatus = "rejected"
)

// FriendRequest is a directed edge from sender to receiver. Storage is
// directional; once accepted the relationship is read symmetrically. No soft
// delete: unfriending removes the row so a fresh request can be created.
//
// PairMinID/PairMaxID hold the endpoints in canonical order so the unique
// index covers both directions: two simultaneous requests between the same
// two users cannot both insert, whichever way each points.
type FriendRequest struct {
	ID         uint                `gorm:"primaryKey"`
	SenderID   uint                `gorm:"not null;index"`
	ReceiverID uint                `gorm:"not null;index"`
	PairMinID  uint                `gorm:"not null;uniqueIndex:idx_friend_requests_pair"`
	PairMaxID  uint                `gorm:"not null;uniqueIndex:idx_friend_requests_pair"`
	Status     FriendRequestStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Sender   User `gorm:"foreignKey:SenderID"`
	Receiver User `gorm:"foreignKey:ReceiverID"`
}

// BeforeCreate fills the canonical pair columns from the directed endpoints.
func (r *FriendRequest) BeforeCreate(*gorm.DB) error {
	r.PairMinID, r.PairMaxID = r.SenderID, r.ReceiverID
	if r.PairMinID > r.PairMaxID {
		r.PairMinID, r.PairMaxID = r.PairMaxID, r.PairMinID
	}
	return nil
}
