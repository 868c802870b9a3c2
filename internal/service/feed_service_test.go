package service

import (
	"context"
	"testing"
	"time"

	"whispr/backend/internal/cache"
	"whispr/backend/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newFeedService(t *testing.T) (*FeedService, *FriendService, *gorm.DB) {
	t.Helper()
	db := setupDB(t)
	friends := NewFriendService(db, nil, false)
	return NewFeedService(db, friends, nil), friends, db
}

func befriend(t *testing.T, friends *FriendService, a, b uint) {
	t.Helper()
	ctx := context.Background()
	_, err := friends.SendRequest(ctx, a, b)
	require.NoError(t, err)
	_, err = friends.AcceptRequest(ctx, b, a)
	require.NoError(t, err)
}

func createPost(t *testing.T, db *gorm.DB, authorID uint, content string, at time.Time) *models.Post {
	t.Helper()
	post := &models.Post{UserID: authorID, Content: content}
	post.CreatedAt = at
	require.NoError(t, db.Create(post).Error)
	return post
}

func TestFeedVisibility(t *testing.T) {
	svc, friends, db := newFeedService(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")

	befriend(t, friends, alice.ID, bob.ID)

	base := time.Now().Add(-time.Hour)
	createPost(t, db, alice.ID, "mine", base)
	createPost(t, db, bob.ID, "from a friend", base.Add(time.Minute))
	createPost(t, db, carol.ID, "from a stranger", base.Add(2*time.Minute))

	page, err := svc.Feed(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, page, 2)

	// Newest first, and carol's post never appears.
	assert.Equal(t, "from a friend", page[0].Content)
	assert.Equal(t, "mine", page[1].Content)

	// carol sees only her own post.
	page, err = svc.Feed(ctx, carol.ID)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "from a stranger", page[0].Content)
}

func TestFeedTruncatesToPageSize(t *testing.T) {
	svc, _, db := newFeedService(t)
	alice := createUser(t, db, "alice")

	base := time.Now().Add(-2 * time.Hour)
	for i := 0; i < FeedPageSize+5; i++ {
		createPost(t, db, alice.ID, "post", base.Add(time.Duration(i)*time.Second))
	}

	page, err := svc.Feed(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Len(t, page, FeedPageSize)
}

func TestFeedEnrichment(t *testing.T) {
	svc, friends, db := newFeedService(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	befriend(t, friends, alice.ID, bob.ID)
	post := createPost(t, db, bob.ID, "hello", time.Now().Add(-time.Minute))

	_, err := svc.ToggleLike(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	_, _, err = svc.AddComment(ctx, alice.ID, post.ID, "nice")
	require.NoError(t, err)
	_, _, err = svc.AddComment(ctx, bob.ID, post.ID, "thanks")
	require.NoError(t, err)

	page, err := svc.Feed(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, page, 1)

	entry := page[0]
	require.NotNil(t, entry.Author)
	assert.Equal(t, "bob", entry.Author.Username)
	assert.Equal(t, int64(1), entry.LikeCount)
	assert.Equal(t, int64(2), entry.CommentCount)
	assert.True(t, entry.IsLiked)

	// Like state is viewer-relative.
	page, err = svc.Feed(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(1), page[0].LikeCount)
	assert.False(t, page[0].IsLiked)
}

func TestToggleLikeIdempotence(t *testing.T) {
	svc, _, db := newFeedService(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	post := createPost(t, db, alice.ID, "hello", time.Now())

	likeRows := func() int64 {
		var n int64
		require.NoError(t, db.Model(&models.Like{}).Where("post_id = ?", post.ID).Count(&n).Error)
		return n
	}

	liked, err := svc.ToggleLike(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, int64(1), likeRows())

	liked, err = svc.ToggleLike(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, int64(0), likeRows())

	liked, err = svc.ToggleLike(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, int64(1), likeRows())
}

func TestListLikers(t *testing.T) {
	svc, _, db := newFeedService(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	post := createPost(t, db, alice.ID, "hello", time.Now())

	_, err := svc.ToggleLike(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	_, err = svc.ToggleLike(ctx, bob.ID, post.ID)
	require.NoError(t, err)

	likers, err := svc.ListLikers(ctx, post.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(likers))
	for _, u := range likers {
		names = append(names, u.Username)
	}
	assert.ElementsMatch(t, []string{"alice", "bob"}, names)
}

func TestAddComment(t *testing.T) {
	svc, _, db := newFeedService(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	post := createPost(t, db, alice.ID, "hello", time.Now())

	_, _, err := svc.AddComment(ctx, alice.ID, post.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyContent)

	comment, count, err := svc.AddComment(ctx, alice.ID, post.ID, "first")
	require.NoError(t, err)
	assert.Equal(t, "first", comment.Content)
	assert.Equal(t, "alice", comment.User.Username)
	assert.Equal(t, int64(1), count)

	_, count, err = svc.AddComment(ctx, alice.ID, post.ID, "second")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestListCommentsOldestFirst(t *testing.T) {
	svc, _, db := newFeedService(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	post := createPost(t, db, alice.ID, "hello", time.Now().Add(-time.Hour))

	base := time.Now().Add(-30 * time.Minute)
	for i, c := range []struct {
		author  uint
		content string
	}{
		{alice.ID, "first"},
		{bob.ID, "second"},
	} {
		comment := models.Comment{PostID: post.ID, UserID: c.author, Content: c.content}
		comment.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, db.Create(&comment).Error)
	}

	comments, err := svc.ListComments(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Content)
	assert.Equal(t, "alice", comments[0].User.Username)
	assert.Equal(t, "second", comments[1].Content)
	assert.Equal(t, "bob", comments[1].User.Username)
}

func TestCreatePost(t *testing.T) {
	svc, _, db := newFeedService(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")

	_, err := svc.CreatePost(ctx, alice.ID, "  \n ", "")
	assert.ErrorIs(t, err, ErrEmptyContent)

	post, err := svc.CreatePost(ctx, alice.ID, "  hello  ", "")
	require.NoError(t, err)
	assert.Equal(t, "hello", post.Content)
	assert.Equal(t, alice.ID, post.UserID)
}

func TestDeletePost(t *testing.T) {
	svc, _, db := newFeedService(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	post := createPost(t, db, alice.ID, "hello", time.Now())

	_, err := svc.ToggleLike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	_, _, err = svc.AddComment(ctx, bob.ID, post.ID, "bye")
	require.NoError(t, err)

	// Someone else's post is just not found.
	err = svc.DeletePost(ctx, bob.ID, post.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.DeletePost(ctx, alice.ID, post.ID))

	var likes, comments int64
	require.NoError(t, db.Model(&models.Like{}).Where("post_id = ?", post.ID).Count(&likes).Error)
	require.NoError(t, db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&comments).Error)
	assert.Equal(t, int64(0), likes)
	assert.Equal(t, int64(0), comments)

	err = svc.DeletePost(ctx, alice.ID, post.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserPostsAnonymousViewer(t *testing.T) {
	svc, _, db := newFeedService(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	post := createPost(t, db, alice.ID, "hello", time.Now())

	_, err := svc.ToggleLike(ctx, alice.ID, post.ID)
	require.NoError(t, err)

	// viewerID zero: counts are real, like state is never set.
	page, err := svc.UserPosts(ctx, alice.ID, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(1), page[0].LikeCount)
	assert.False(t, page[0].IsLiked)

	page, err = svc.UserPosts(ctx, alice.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.True(t, page[0].IsLiked)
}

func TestCountNewPosts(t *testing.T) {
	ids := []uint{50, 40, 30, 20, 10}

	tests := []struct {
		name     string
		ids      []uint
		lastSeen uint
		want     int
	}{
		{"last seen is newest", ids, 50, 0},
		{"two newer posts", ids, 30, 2},
		{"last seen is oldest", ids, 10, 4},
		{"last seen fell out of the window", ids, 99, 5},
		{"empty feed", nil, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, countNewPosts(tt.ids, tt.lastSeen))
		})
	}
}

func TestNewPostsCount(t *testing.T) {
	svc, friends, db := newFeedService(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	befriend(t, friends, alice.ID, bob.ID)

	base := time.Now().Add(-time.Hour)
	seen := createPost(t, db, alice.ID, "seen", base)
	createPost(t, db, bob.ID, "newer", base.Add(time.Minute))
	createPost(t, db, bob.ID, "newest", base.Add(2*time.Minute))

	count, err := svc.NewPostsCount(ctx, alice.ID, seen.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// A deleted last-seen post makes everything count as new.
	require.NoError(t, svc.DeletePost(ctx, alice.ID, seen.ID))
	count, err = svc.NewPostsCount(ctx, alice.ID, seen.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func newCachedFeedService(t *testing.T) (*FeedService, *FriendService, *gorm.DB) {
	t.Helper()
	db := setupDB(t)
	mr := miniredis.RunT(t)
	c := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { c.Close() })
	friends := NewFriendService(db, c, false)
	return NewFeedService(db, friends, c), friends, db
}

func TestCreatePostRefreshesFriendFeeds(t *testing.T) {
	svc, friends, db := newCachedFeedService(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	befriend(t, friends, alice.ID, bob.ID)

	first := createPost(t, db, alice.ID, "first", time.Now().Add(-time.Hour))

	// Warm alice's snapshot with one post.
	page, err := svc.Feed(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, page, 1)

	// A friend posting must reach alice: the badge count and the feed page
	// have to agree.
	_, err = svc.CreatePost(ctx, bob.ID, "second", "")
	require.NoError(t, err)

	count, err := svc.NewPostsCount(ctx, alice.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	page, err = svc.Feed(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "second", page[0].Content)
}

func TestLikeAndCommentRefreshFriendFeeds(t *testing.T) {
	svc, friends, db := newCachedFeedService(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	befriend(t, friends, alice.ID, bob.ID)
	post := createPost(t, db, alice.ID, "hello", time.Now().Add(-time.Minute))

	page, err := svc.Feed(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(0), page[0].LikeCount)

	// bob's engagement shows up in alice's page, not just bob's.
	_, err = svc.ToggleLike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	_, _, err = svc.AddComment(ctx, bob.ID, post.ID, "nice")
	require.NoError(t, err)

	page, err = svc.Feed(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(1), page[0].LikeCount)
	assert.Equal(t, int64(1), page[0].CommentCount)
}

func TestDeletePostRefreshesFriendFeeds(t *testing.T) {
	svc, friends, db := newCachedFeedService(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	befriend(t, friends, alice.ID, bob.ID)
	post := createPost(t, db, bob.ID, "going away", time.Now().Add(-time.Minute))

	page, err := svc.Feed(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, page, 1)

	require.NoError(t, svc.DeletePost(ctx, bob.ID, post.ID))

	page, err = svc.Feed(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestFeedSurvivesEngagementLookupFailure(t *testing.T) {
	svc, friends, db := newFeedService(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	befriend(t, friends, alice.ID, bob.ID)
	post := createPost(t, db, bob.ID, "hello", time.Now().Add(-time.Minute))

	_, err := svc.ToggleLike(ctx, alice.ID, post.ID)
	require.NoError(t, err)

	// With the likes table gone every like lookup errors; the page must
	// still load with zero/false fallbacks instead of failing.
	require.NoError(t, db.Migrator().DropTable(&models.Like{}))

	page, err := svc.Feed(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(0), page[0].LikeCount)
	assert.False(t, page[0].IsLiked)
}

func TestDeletePostVerificationFailure(t *testing.T) {
	svc, _, db := newFeedService(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	post := createPost(t, db, alice.ID, "stuck", time.Now())

	// Neuter deletes: they report success but remove nothing, so the
	// post-condition read finds the row still there.
	require.NoError(t, db.Callback().Delete().Replace("gorm:delete", func(tx *gorm.DB) {
		tx.RowsAffected = 1
	}))

	err := svc.DeletePost(ctx, alice.ID, post.ID)
	assert.ErrorIs(t, err, ErrDeleteVerification)
}

func TestToggleLikeMissingPost(t *testing.T) {
	svc, _, db := newFeedService(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")

	_, err := svc.ToggleLike(ctx, alice.ID, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	var n int64
	require.NoError(t, db.Model(&models.Like{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)
}

func TestAddCommentMissingPost(t *testing.T) {
	svc, _, db := newFeedService(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")

	_, _, err := svc.AddComment(ctx, alice.ID, 9999, "hello?")
	assert.ErrorIs(t, err, ErrNotFound)

	var n int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)
}

func TestVisibleAuthorsIncludesSelf(t *testing.T) {
	svc, friends, db := newFeedService(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")

	befriend(t, friends, alice.ID, bob.ID)
	befriend(t, friends, carol.ID, alice.ID)

	authors, err := svc.VisibleAuthors(ctx, alice.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{alice.ID, bob.ID, carol.ID}, authors)
}
