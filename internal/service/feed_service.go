package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"whispr/backend/internal/cache"
	"whispr/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeedPageSize caps how many posts a feed page carries. Candidates are
// fetched unranked and truncated here at the application boundary, not in
// the query.
const FeedPageSize = 30

// FeedPost is a post annotated with engagement data relative to a viewer.
type FeedPost struct {
	models.Post
	Author       *AuthorInfo `json:"author"`
	LikeCount    int64       `json:"like_count"`
	CommentCount int64       `json:"comment_count"`
	IsLiked      bool        `json:"is_liked"`
}

// AuthorInfo is the subset of a profile attached to feed entries.
type AuthorInfo struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func authorInfo(u models.User) *AuthorInfo {
	return &AuthorInfo{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		AvatarURL: u.AvatarURL,
	}
}

// FeedService assembles the visibility-filtered, time-ordered feed and owns
// posts, likes and comments.
type FeedService struct {
	db      *gorm.DB
	friends *FriendService
	cache   *cache.Cache
}

func NewFeedService(db *gorm.DB, friends *FriendService, c *cache.Cache) *FeedService {
	return &FeedService{db: db, friends: friends, cache: c}
}

// VisibleAuthors returns the set of authors whose posts the viewer may see:
// the viewer plus all accepted friends. Derived from the edge table, not a
// separate join table.
func (s *FeedService) VisibleAuthors(ctx context.Context, viewerID uint) ([]uint, error) {
	edges, err := s.friends.acceptedEdges(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	authors := make([]uint, 0, len(edges)+1)
	for _, e := range edges {
		if e.SenderID == viewerID {
			authors = append(authors, e.ReceiverID)
		} else {
			authors = append(authors, e.SenderID)
		}
	}
	return append(authors, viewerID), nil
}

// invalidateFeedsFor drops the feed snapshots of everyone whose feed carries
// the author's posts: the author and their accepted friends. Friendship is
// symmetric, so the author's visible-author set is exactly that audience.
func (s *FeedService) invalidateFeedsFor(ctx context.Context, authorID uint) {
	viewers, err := s.VisibleAuthors(ctx, authorID)
	if err != nil {
		return
	}
	keys := make([]string, 0, len(viewers))
	for _, id := range viewers {
		keys = append(keys, cache.FeedKey(id))
	}
	s.cache.Invalidate(ctx, keys...)
}

// Feed assembles the viewer's feed page: visible posts newest first,
// truncated to FeedPageSize, each enriched with author profile, like count,
// comment count and the viewer's like state. A fresh page is snapshotted in
// the cache; mutations by the viewer invalidate it.
func (s *FeedService) Feed(ctx context.Context, viewerID uint) ([]FeedPost, error) {
	var page []FeedPost
	if s.cache.Get(ctx, cache.FeedKey(viewerID), &page) {
		return page, nil
	}

	authors, err := s.VisibleAuthors(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	var posts []models.Post
	if err := s.db.WithContext(ctx).
		Where("user_id IN ?", authors).
		Order("created_at DESC").
		Find(&posts).Error; err != nil {
		return nil, err
	}
	if len(posts) > FeedPageSize {
		posts = posts[:FeedPageSize]
	}

	page, err = s.enrich(ctx, posts, viewerID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, cache.FeedKey(viewerID), page)
	return page, nil
}

// enrich attaches author profiles (one batched lookup for the whole page)
// and per-post engagement data. The per-post lookups fan out concurrently;
// a failed enrichment falls back to zero/false for that post instead of
// failing the page.
func (s *FeedService) enrich(ctx context.Context, posts []models.Post, viewerID uint) ([]FeedPost, error) {
	if len(posts) == 0 {
		return []FeedPost{}, nil
	}

	authorIDs := make([]uint, 0, len(posts))
	seen := make(map[uint]bool, len(posts))
	for _, p := range posts {
		if !seen[p.UserID] {
			seen[p.UserID] = true
			authorIDs = append(authorIDs, p.UserID)
		}
	}

	var authors []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", authorIDs).Find(&authors).Error; err != nil {
		return nil, err
	}
	authorsByID := make(map[uint]models.User, len(authors))
	for _, a := range authors {
		authorsByID[a.ID] = a
	}

	page := make([]FeedPost, len(posts))
	var wg sync.WaitGroup
	for i := range posts {
		page[i].Post = posts[i]
		if a, ok := authorsByID[posts[i].UserID]; ok {
			page[i].Author = authorInfo(a)
		}

		wg.Add(1)
		go func(i int, postID uint) {
			defer wg.Done()
			likeCount, commentCount, isLiked := s.engagement(ctx, postID, viewerID)
			page[i].LikeCount = likeCount
			page[i].CommentCount = commentCount
			page[i].IsLiked = isLiked
		}(i, posts[i].ID)
	}
	wg.Wait()

	return page, nil
}

// engagement fetches one post's counters and the viewer's like state.
// Errors degrade to zero values.
func (s *FeedService) engagement(ctx context.Context, postID, viewerID uint) (likeCount, commentCount int64, isLiked bool) {
	if err := s.db.WithContext(ctx).Model(&models.Like{}).
		Where("post_id = ?", postID).Count(&likeCount).Error; err != nil {
		likeCount = 0
	}
	if err := s.db.WithContext(ctx).Model(&models.Comment{}).
		Where("post_id = ?", postID).Count(&commentCount).Error; err != nil {
		commentCount = 0
	}
	if viewerID != 0 {
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.Like{}).
			Where("post_id = ? AND user_id = ?", postID, viewerID).Count(&n).Error; err == nil {
			isLiked = n > 0
		}
	}
	return likeCount, commentCount, isLiked
}

// feedIDs returns the viewer's visible post ids, newest first, truncated to
// the same window Feed serves.
func (s *FeedService) feedIDs(ctx context.Context, viewerID uint) ([]uint, error) {
	authors, err := s.VisibleAuthors(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("user_id IN ?", authors).
		Order("created_at DESC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) > FeedPageSize {
		ids = ids[:FeedPageSize]
	}
	return ids, nil
}

// NewPostsCount is the lightweight "N new posts" peek: how many posts sit
// strictly before the viewer's last-seen post in the current ordering. If
// the last-seen id is no longer in the window — deleted, or pushed out by
// more than a window of new posts — every fetched post counts as new. A
// staleness heuristic, not an exact count.
func (s *FeedService) NewPostsCount(ctx context.Context, viewerID, lastSeenID uint) (int, error) {
	ids, err := s.feedIDs(ctx, viewerID)
	if err != nil {
		return 0, err
	}
	return countNewPosts(ids, lastSeenID), nil
}

func countNewPosts(ids []uint, lastSeenID uint) int {
	for i, id := range ids {
		if id == lastSeenID {
			return i
		}
	}
	return len(ids)
}

// CreatePost inserts a post for the viewer and invalidates their feed
// snapshot.
func (s *FeedService) CreatePost(ctx context.Context, viewerID uint, content, imageURL string) (*models.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	post := models.Post{UserID: viewerID, Content: content, ImageURL: imageURL}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, err
	}

	// The new post lands in every friend's feed, not just the author's.
	s.invalidateFeedsFor(ctx, viewerID)
	return &post, nil
}

// DeletePost removes the viewer's own post along with its likes and
// comments, then verifies the post is really gone.
func (s *FeedService) DeletePost(ctx context.Context, viewerID, postID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		// Ownership is part of the predicate; someone else's post is just
		// not found.
		if err := tx.Where("id = ? AND user_id = ?", postID, viewerID).First(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if err := tx.Where("post_id = ?", postID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		return err
	}

	// Post-condition verification read.
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrDeleteVerification
	}

	s.invalidateFeedsFor(ctx, viewerID)
	return nil
}

// UserPosts returns one author's posts newest first with the usual
// enrichment. viewerID may be zero (unauthenticated); like state is then
// false everywhere.
func (s *FeedService) UserPosts(ctx context.Context, authorID, viewerID uint) ([]FeedPost, error) {
	var posts []models.Post
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", authorID).
		Order("created_at DESC").
		Find(&posts).Error; err != nil {
		return nil, err
	}
	return s.enrich(ctx, posts, viewerID)
}

// ToggleLike flips the viewer's like on a post and returns the new state.
// Runs in one transaction; the insert is idempotent, so a duplicate like
// can never create a second row. A missing post is ErrNotFound, never an
// orphan like row.
func (s *FeedService) ToggleLike(ctx context.Context, viewerID, postID uint) (bool, error) {
	var liked bool
	var post models.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var existing models.Like
		err := tx.Where("post_id = ? AND user_id = ?", postID, viewerID).First(&existing).Error
		if err == nil {
			liked = false
			return tx.Delete(&existing).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		liked = true
		like := models.Like{PostID: postID, UserID: viewerID}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error
	})
	if err != nil {
		return false, err
	}

	// The like count shows in every feed carrying the post; the viewer's own
	// snapshot additionally holds the stale like state.
	s.invalidateFeedsFor(ctx, post.UserID)
	s.cache.Invalidate(ctx, cache.FeedKey(viewerID))
	return liked, nil
}

// ListLikers returns the profiles of everyone who liked a post.
func (s *FeedService) ListLikers(ctx context.Context, postID uint) ([]models.User, error) {
	var userIDs []uint
	if err := s.db.WithContext(ctx).Model(&models.Like{}).
		Where("post_id = ?", postID).
		Pluck("user_id", &userIDs).Error; err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return []models.User{}, nil
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// AddComment appends a comment and returns it together with the post's
// re-queried comment count. The count is recomputed rather than incremented
// so concurrent deletions elsewhere cannot drift it. A missing post is
// ErrNotFound, never an orphan comment row.
func (s *FeedService) AddComment(ctx context.Context, viewerID, postID uint, content string) (*models.Comment, int64, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, 0, ErrEmptyContent
	}

	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}

	comment := models.Comment{PostID: postID, UserID: viewerID, Content: content}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, 0, err
	}
	if err := s.db.WithContext(ctx).First(&comment.User, viewerID).Error; err != nil {
		return nil, 0, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Comment{}).
		Where("post_id = ?", postID).Count(&count).Error; err != nil {
		return nil, 0, err
	}

	s.invalidateFeedsFor(ctx, post.UserID)
	s.cache.Invalidate(ctx, cache.FeedKey(viewerID))
	return &comment, count, nil
}

// ListComments returns a post's comments oldest first with their authors
// resolved in one batched lookup.
func (s *FeedService) ListComments(ctx context.Context, postID uint) ([]models.Comment, error) {
	var comments []models.Comment
	if err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return comments, nil
	}

	authorIDs := make([]uint, 0, len(comments))
	seen := make(map[uint]bool)
	for _, c := range comments {
		if !seen[c.UserID] {
			seen[c.UserID] = true
			authorIDs = append(authorIDs, c.UserID)
		}
	}
	var authors []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", authorIDs).Find(&authors).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.User, len(authors))
	for _, a := range authors {
		byID[a.ID] = a
	}
	for i := range comments {
		comments[i].User = byID[comments[i].UserID]
	}
	return comments, nil
}
