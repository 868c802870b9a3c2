package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"whispr/backend/internal/models"
	"whispr/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// CreatePostInput is the body for creating a post.
type CreatePostInput struct {
	Content  string `json:"content" binding:"required"`
	ImageURL string `json:"image_url"`
}

// CreateCommentInput is the body for commenting on a post.
type CreateCommentInput struct {
	Content string `json:"content" binding:"required"`
}

// CommentResponse is a comment with its author stitched in.
type CommentResponse struct {
	ID        uint   `json:"id"`
	PostID    uint   `json:"post_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	Author    struct {
		ID        uint   `json:"id"`
		Username  string `json:"username"`
		AvatarURL string `json:"avatar_url,omitempty"`
	} `json:"author"`
}

func newCommentResponse(cm *models.Comment) CommentResponse {
	resp := CommentResponse{
		ID:        cm.ID,
		PostID:    cm.PostID,
		Content:   cm.Content,
		CreatedAt: cm.CreatedAt.UTC().Format(time.RFC3339),
	}
	resp.Author.ID = cm.UserID
	resp.Author.Username = cm.User.Username
	resp.Author.AvatarURL = cm.User.AvatarURL
	return resp
}

// PostHandler exposes post, like and comment endpoints.
type PostHandler struct {
	svc *service.FeedService
}

func NewPostHandler(svc *service.FeedService) *PostHandler {
	return &PostHandler{svc: svc}
}

func postID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return 0, false
	}
	return uint(id), true
}

// CreatePost godoc
// @Summary      Create a post
// @Tags         posts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        post  body      CreatePostInput  true  "Post content"
// @Success      201   {object}  models.Post
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Router       /posts [post]
func (h *PostHandler) CreatePost(c *gin.Context) {
	viewerID, _ := c.Get("userID")

	var input CreatePostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := h.svc.CreatePost(c.Request.Context(), viewerID.(uint), input.Content, input.ImageURL)
	switch {
	case errors.Is(err, service.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Post content cannot be empty"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create post"})
	default:
		c.JSON(http.StatusCreated, post)
	}
}

// DeletePost godoc
// @Summary      Delete own post
// @Description  Deletes the viewer's post along with its likes and comments, then verifies the post is gone.
// @Tags         posts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Post ID"
// @Success      200  {object}  map[string]string "{"message": "Post deleted"}"
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Post not found or not owned by viewer"
// @Failure      500  {object}  ErrorResponse "Post survived the delete"
// @Router       /posts/{id} [delete]
func (h *PostHandler) DeletePost(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	post, ok := postID(c)
	if !ok {
		return
	}

	err := h.svc.DeletePost(c.Request.Context(), viewerID.(uint), post)
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
	case errors.Is(err, service.ErrDeleteVerification):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Post still exists after deletion"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete post"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
	}
}

// GetUserPosts godoc
// @Summary      List a user's posts
// @Description  Returns the user's posts newest first, enriched the same way as the feed. Works without authentication; like state is only set for logged-in viewers.
// @Tags         posts
// @Produce      json
// @Param        id   path      int  true  "Author User ID"
// @Success      200  {array}   service.FeedPost
// @Failure      400  {object}  ErrorResponse
// @Router       /users/{id}/posts [get]
func (h *PostHandler) GetUserPosts(c *gin.Context) {
	author, ok := targetID(c)
	if !ok {
		return
	}

	var viewerID uint
	if v, exists := c.Get("userID"); exists {
		viewerID = v.(uint)
	}

	posts, err := h.svc.UserPosts(c.Request.Context(), author, viewerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}

	c.JSON(http.StatusOK, posts)
}

// ToggleLike godoc
// @Summary      Toggle like on a post
// @Description  Likes the post if the viewer has not liked it, removes the like otherwise. A repeated like never creates a second row.
// @Tags         posts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Post ID"
// @Success      200  {object}  map[string]bool "{"is_liked": true}"
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Post not found"
// @Router       /posts/{id}/like [post]
func (h *PostHandler) ToggleLike(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	post, ok := postID(c)
	if !ok {
		return
	}

	liked, err := h.svc.ToggleLike(c.Request.Context(), viewerID.(uint), post)
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to toggle like"})
	default:
		c.JSON(http.StatusOK, gin.H{"is_liked": liked})
	}
}

// ListLikers godoc
// @Summary      List users who liked a post
// @Tags         posts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Post ID"
// @Success      200  {array}   FriendProfileResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /posts/{id}/likes [get]
func (h *PostHandler) ListLikers(c *gin.Context) {
	post, ok := postID(c)
	if !ok {
		return
	}

	users, err := h.svc.ListLikers(c.Request.Context(), post)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch likes"})
		return
	}

	c.JSON(http.StatusOK, newFriendProfileResponses(users))
}

// AddComment godoc
// @Summary      Comment on a post
// @Description  Adds a comment and returns it together with the post's up-to-date comment count.
// @Tags         posts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                 true  "Post ID"
// @Param        comment  body      CreateCommentInput  true  "Comment content"
// @Success      201      {object}  map[string]interface{} "{"comment": ..., "comment_count": 5}"
// @Failure      400      {object}  ErrorResponse
// @Failure      401      {object}  ErrorResponse
// @Failure      404      {object}  ErrorResponse "Post not found"
// @Router       /posts/{id}/comments [post]
func (h *PostHandler) AddComment(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	post, ok := postID(c)
	if !ok {
		return
	}

	var input CreateCommentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, count, err := h.svc.AddComment(c.Request.Context(), viewerID.(uint), post, input.Content)
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
	case errors.Is(err, service.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Comment cannot be empty"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add comment"})
	default:
		c.JSON(http.StatusCreated, gin.H{
			"comment":       newCommentResponse(comment),
			"comment_count": count,
		})
	}
}

// ListComments godoc
// @Summary      List a post's comments
// @Description  Returns the post's comments oldest first with their authors.
// @Tags         posts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Post ID"
// @Success      200  {array}   CommentResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /posts/{id}/comments [get]
func (h *PostHandler) ListComments(c *gin.Context) {
	post, ok := postID(c)
	if !ok {
		return
	}

	comments, err := h.svc.ListComments(c.Request.Context(), post)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch comments"})
		return
	}

	out := make([]CommentResponse, 0, len(comments))
	for i := range comments {
		out = append(out, newCommentResponse(&comments[i]))
	}
	c.JSON(http.StatusOK, out)
}
