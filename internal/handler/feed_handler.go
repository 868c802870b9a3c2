package handler

import (
	"net/http"
	"strconv"

	"whispr/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// FeedHandler serves the home feed.
type FeedHandler struct {
	svc *service.FeedService
}

func NewFeedHandler(svc *service.FeedService) *FeedHandler {
	return &FeedHandler{svc: svc}
}

// GetFeed godoc
// @Summary      Get home feed
// @Description  Returns the newest posts from the viewer's accepted friends and the viewer themselves, enriched with author, like and comment counts.
// @Tags         feed
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   service.FeedPost
// @Failure      401  {object}  ErrorResponse
// @Router       /feed [get]
func (h *FeedHandler) GetFeed(c *gin.Context) {
	viewerID, _ := c.Get("userID")

	posts, err := h.svc.Feed(c.Request.Context(), viewerID.(uint))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch feed"})
		return
	}

	c.JSON(http.StatusOK, posts)
}

// GetNewPostsCount godoc
// @Summary      Count posts newer than the last seen one
// @Description  Returns how many feed posts are newer than last_seen_id. If the post is no longer in the feed, every post counts as new.
// @Tags         feed
// @Produce      json
// @Security     BearerAuth
// @Param        last_seen_id  query     int  true  "ID of the newest post the client has seen"
// @Success      200  {object}  map[string]int "{"count": 4}"
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /feed/new-count [get]
func (h *FeedHandler) GetNewPostsCount(c *gin.Context) {
	viewerID, _ := c.Get("userID")

	lastSeen, err := strconv.ParseUint(c.Query("last_seen_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid last_seen_id"})
		return
	}

	count, err := h.svc.NewPostsCount(c.Request.Context(), viewerID.(uint), uint(lastSeen))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count new posts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}
