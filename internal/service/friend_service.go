package service

import (
	"context"
	"errors"

	"whispr/backend/internal/cache"
	"whispr/backend/internal/events"
	"whispr/backend/internal/models"

	"gorm.io/gorm"
)

// RelationshipStatus is the viewer-relative state of a pair of users.
type RelationshipStatus string

const (
	RelationNone     RelationshipStatus = "none"
	RelationPending  RelationshipStatus = "pending"
	RelationAccepted RelationshipStatus = "accepted"
	RelationRejected RelationshipStatus = "rejected"
)

// FriendService owns the friend-request edge lifecycle and answers
// relationship queries. Each multi-step mutation runs inside a single
// transaction so two concurrent conflicting mutations cannot interleave
// between the existence check and the write.
//
// A rejected edge deliberately blocks a later SendRequest from either side:
// the pair-existence check does not special-case rejected rows. This mirrors
// the shipped behavior of the app this service replaces.
type FriendService struct {
	db           *gorm.DB
	cache        *cache.Cache
	recordEvents bool
}

func NewFriendService(db *gorm.DB, c *cache.Cache, recordEvents bool) *FriendService {
	return &FriendService{db: db, cache: c, recordEvents: recordEvents}
}

// invalidateFeeds drops both parties' feed snapshots after an edge mutation;
// a friendship change alters what each side is allowed to see.
func (s *FriendService) invalidateFeeds(ctx context.Context, a, b uint) {
	s.cache.Invalidate(ctx, cache.FeedKey(a), cache.FeedKey(b))
}

func (s *FriendService) record(tx *gorm.DB, eventType string, senderID, receiverID uint) error {
	if !s.recordEvents {
		return nil
	}
	return events.Record(tx, eventType, senderID, receiverID)
}

// pairScope matches the edge between two users in either direction.
func pairScope(tx *gorm.DB, a, b uint) *gorm.DB {
	return tx.Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a)
}

// SendRequest creates a pending edge from viewer to target. If any edge
// already exists between the pair — pending, accepted or rejected, in either
// direction — the existing record is returned with ErrAlreadyRequested.
func (s *FriendService) SendRequest(ctx context.Context, viewerID, targetID uint) (*models.FriendRequest, error) {
	if viewerID == targetID {
		return nil, ErrSelfRequest
	}

	var out models.FriendRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := pairScope(tx.Model(&models.FriendRequest{}), viewerID, targetID).First(&out).Error
		if err == nil {
			return ErrAlreadyRequested
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		out = models.FriendRequest{
			SenderID:   viewerID,
			ReceiverID: targetID,
			Status:     models.StatusPending,
		}
		if err := tx.Create(&out).Error; err != nil {
			return err
		}
		return s.record(tx, events.EventRequestSent, viewerID, targetID)
	})
	if errors.Is(err, ErrAlreadyRequested) {
		return &out, ErrAlreadyRequested
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AcceptRequest transitions the pending edge from senderID to the viewer to
// accepted. Only the receiver matches the predicate; anything else is
// ErrNotFound.
func (s *FriendService) AcceptRequest(ctx context.Context, viewerID, senderID uint) (*models.FriendRequest, error) {
	return s.answerRequest(ctx, viewerID, senderID, models.StatusAccepted, events.EventRequestAccepted)
}

// RejectRequest transitions the pending edge from senderID to the viewer to
// rejected. The row stays in place and blocks a re-send.
func (s *FriendService) RejectRequest(ctx context.Context, viewerID, senderID uint) (*models.FriendRequest, error) {
	return s.answerRequest(ctx, viewerID, senderID, models.StatusRejected, events.EventRequestRejected)
}

func (s *FriendService) answerRequest(ctx context.Context, viewerID, senderID uint, status models.FriendRequestStatus, eventType string) (*models.FriendRequest, error) {
	var out models.FriendRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.FriendRequest{}).
			Where("sender_id = ? AND receiver_id = ? AND status = ?", senderID, viewerID, models.StatusPending).
			Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("sender_id = ? AND receiver_id = ?", senderID, viewerID).First(&out).Error; err != nil {
			return err
		}
		return s.record(tx, eventType, senderID, viewerID)
	})
	if err != nil {
		return nil, err
	}
	if status == models.StatusAccepted {
		s.invalidateFeeds(ctx, viewerID, senderID)
	}
	return &out, nil
}

// CancelRequest deletes the viewer's own outgoing pending request. Only the
// original sender matches the predicate, and only while pending.
func (s *FriendService) CancelRequest(ctx context.Context, viewerID, receiverID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("sender_id = ? AND receiver_id = ? AND status = ?", viewerID, receiverID, models.StatusPending).
			Delete(&models.FriendRequest{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return s.record(tx, events.EventRequestCanceled, viewerID, receiverID)
	})
}

// Unfriend removes the edge between viewer and other in both directional
// orientations; the application does not know which side initiated the
// accepted request. Idempotent: no edge is not an error. After the delete
// commits, a verification read confirms the edge is really gone.
func (s *FriendService) Unfriend(ctx context.Context, viewerID, otherID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := pairScope(tx, viewerID, otherID).Delete(&models.FriendRequest{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return s.record(tx, events.EventUnfriended, viewerID, otherID)
	})
	if err != nil {
		return err
	}

	var remaining int64
	if err := pairScope(s.db.WithContext(ctx).Model(&models.FriendRequest{}), viewerID, otherID).
		Count(&remaining).Error; err != nil {
		return err
	}
	if remaining > 0 {
		return ErrDeleteVerification
	}

	s.invalidateFeeds(ctx, viewerID, otherID)
	return nil
}

// Status reports the edge status between viewer and target, plus whether the
// viewer was the original sender — the UI needs the role to pick between
// "cancel" and "accept" for a pending edge.
func (s *FriendService) Status(ctx context.Context, viewerID, targetID uint) (RelationshipStatus, bool, error) {
	var req models.FriendRequest
	err := pairScope(s.db.WithContext(ctx).Model(&models.FriendRequest{}), viewerID, targetID).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RelationNone, false, nil
	}
	if err != nil {
		return RelationNone, false, err
	}
	return RelationshipStatus(req.Status), req.SenderID == viewerID, nil
}

// acceptedEdges returns all accepted edges touching userID.
func (s *FriendService) acceptedEdges(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	var edges []models.FriendRequest
	err := s.db.WithContext(ctx).
		Where("status = ? AND (sender_id = ? OR receiver_id = ?)", models.StatusAccepted, userID, userID).
		Find(&edges).Error
	return edges, err
}

// ListFriends resolves every accepted edge touching userID to the opposite
// endpoint's profile, fetched in one batched lookup.
func (s *FriendService) ListFriends(ctx context.Context, userID uint) ([]models.User, error) {
	edges, err := s.acceptedEdges(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return []models.User{}, nil
	}

	friendIDs := make([]uint, 0, len(edges))
	for _, e := range edges {
		if e.SenderID == userID {
			friendIDs = append(friendIDs, e.ReceiverID)
		} else {
			friendIDs = append(friendIDs, e.SenderID)
		}
	}

	var profiles []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", friendIDs).Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// CountFriends counts accepted edges touching userID. Same predicate as
// ListFriends, exposed separately so callers that only need the number skip
// transferring profile rows.
func (s *FriendService) CountFriends(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.FriendRequest{}).
		Where("status = ? AND (sender_id = ? OR receiver_id = ?)", models.StatusAccepted, userID, userID).
		Count(&n).Error
	return n, err
}

// ListPendingIncoming returns sender profiles of pending requests addressed
// to userID, newest request first.
func (s *FriendService) ListPendingIncoming(ctx context.Context, userID uint) ([]models.User, error) {
	var requests []models.FriendRequest
	err := s.db.WithContext(ctx).
		Where("receiver_id = ? AND status = ?", userID, models.StatusPending).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return []models.User{}, nil
	}

	senderIDs := make([]uint, 0, len(requests))
	for _, r := range requests {
		senderIDs = append(senderIDs, r.SenderID)
	}

	var senders []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", senderIDs).Find(&senders).Error; err != nil {
		return nil, err
	}

	// The batched lookup loses request order; restore newest-first.
	byID := make(map[uint]models.User, len(senders))
	for _, u := range senders {
		byID[u.ID] = u
	}
	ordered := make([]models.User, 0, len(requests))
	for _, r := range requests {
		if u, ok := byID[r.SenderID]; ok {
			ordered = append(ordered, u)
		}
	}
	return ordered, nil
}
