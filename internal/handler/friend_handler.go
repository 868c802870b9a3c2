package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"whispr/backend/internal/models"
	"whispr/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// FriendRequestResponse mirrors a friend-request row.
type FriendRequestResponse struct {
	ID         uint   `json:"id"`
	SenderID   uint   `json:"sender_id"`
	ReceiverID uint   `json:"receiver_id"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
}

func newFriendRequestResponse(r *models.FriendRequest) FriendRequestResponse {
	return FriendRequestResponse{
		ID:         r.ID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Status:     string(r.Status),
		CreatedAt:  r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// RelationshipResponse answers "what is my relationship to this user".
type RelationshipResponse struct {
	Status        service.RelationshipStatus `json:"status"`
	RequestedByMe bool                       `json:"requested_by_me"`
}

// FriendProfileResponse is a friend (or request sender) profile entry.
type FriendProfileResponse struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func newFriendProfileResponses(users []models.User) []FriendProfileResponse {
	out := make([]FriendProfileResponse, 0, len(users))
	for _, u := range users {
		out = append(out, FriendProfileResponse{
			ID:        u.ID,
			Username:  u.Username,
			FullName:  u.FullName,
			AvatarURL: u.AvatarURL,
		})
	}
	return out
}

// endregion

// FriendHandler exposes the friend-request lifecycle.
type FriendHandler struct {
	svc *service.FriendService
}

func NewFriendHandler(svc *service.FriendService) *FriendHandler {
	return &FriendHandler{svc: svc}
}

func targetID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target user ID"})
		return 0, false
	}
	return uint(id), true
}

// SendRequest godoc
// @Summary      Send friend request
// @Description  Sends a friend request to another user. If any relationship already exists between the pair, the existing record is returned unchanged with status 409.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Target User ID"
// @Success      201  {object}  FriendRequestResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      409  {object}  FriendRequestResponse "Existing relationship"
// @Router       /users/{id}/request [post]
func (h *FriendHandler) SendRequest(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	target, ok := targetID(c)
	if !ok {
		return
	}

	req, err := h.svc.SendRequest(c.Request.Context(), viewerID.(uint), target)
	switch {
	case errors.Is(err, service.ErrSelfRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot send request to yourself"})
	case errors.Is(err, service.ErrAlreadyRequested):
		c.JSON(http.StatusConflict, newFriendRequestResponse(req))
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send friend request"})
	default:
		c.JSON(http.StatusCreated, newFriendRequestResponse(req))
	}
}

// AcceptRequest godoc
// @Summary      Accept friend request
// @Description  Accepts a pending friend request sent by the user in the path.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Requesting User ID"
// @Success      200  {object}  FriendRequestResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Pending request not found"
// @Router       /users/{id}/accept [post]
func (h *FriendHandler) AcceptRequest(c *gin.Context) {
	h.answer(c, h.svc.AcceptRequest)
}

// RejectRequest godoc
// @Summary      Reject friend request
// @Description  Rejects a pending friend request sent by the user in the path. The rejected record remains and blocks a re-send.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Requesting User ID"
// @Success      200  {object}  FriendRequestResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Pending request not found"
// @Router       /users/{id}/reject [post]
func (h *FriendHandler) RejectRequest(c *gin.Context) {
	h.answer(c, h.svc.RejectRequest)
}

func (h *FriendHandler) answer(c *gin.Context, fn func(ctx context.Context, viewerID, senderID uint) (*models.FriendRequest, error)) {
	viewerID, _ := c.Get("userID")
	sender, ok := targetID(c)
	if !ok {
		return
	}

	req, err := fn(c.Request.Context(), viewerID.(uint), sender)
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Pending request not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update friend request"})
	default:
		c.JSON(http.StatusOK, newFriendRequestResponse(req))
	}
}

// CancelRequest godoc
// @Summary      Cancel sent friend request
// @Description  Cancels the viewer's own pending friend request to the user in the path.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Receiver User ID"
// @Success      200  {object}  map[string]string "{"message": "Request canceled"}"
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Pending request not found"
// @Router       /users/{id}/cancel [post]
func (h *FriendHandler) CancelRequest(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	receiver, ok := targetID(c)
	if !ok {
		return
	}

	err := h.svc.CancelRequest(c.Request.Context(), viewerID.(uint), receiver)
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Pending request not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel friend request"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Request canceled"})
	}
}

// Unfriend godoc
// @Summary      Remove friend
// @Description  Removes the relationship with the user in the path. Succeeds even if no relationship exists.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Friend User ID"
// @Success      200  {object}  map[string]string "{"message": "Unfriended"}"
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse "Relationship survived the delete"
// @Router       /users/{id}/unfriend [post]
func (h *FriendHandler) Unfriend(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	other, ok := targetID(c)
	if !ok {
		return
	}

	err := h.svc.Unfriend(c.Request.Context(), viewerID.(uint), other)
	switch {
	case errors.Is(err, service.ErrDeleteVerification):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Relationship still exists after removal"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unfriend"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Unfriended"})
	}
}

// GetRelationship godoc
// @Summary      Get relationship status
// @Description  Returns the relationship between the viewer and the user in the path, with the direction of a pending request.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Target User ID"
// @Success      200  {object}  RelationshipResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /users/{id}/relationship [get]
func (h *FriendHandler) GetRelationship(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	target, ok := targetID(c)
	if !ok {
		return
	}

	status, requestedByMe, err := h.svc.Status(c.Request.Context(), viewerID.(uint), target)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch relationship"})
		return
	}

	c.JSON(http.StatusOK, RelationshipResponse{Status: status, RequestedByMe: requestedByMe})
}

// ListFriends godoc
// @Summary      List a user's friends
// @Description  Returns the profiles of everyone with an accepted relationship to the user in the path.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {array}   FriendProfileResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /users/{id}/friends [get]
func (h *FriendHandler) ListFriends(c *gin.Context) {
	user, ok := targetID(c)
	if !ok {
		return
	}

	friends, err := h.svc.ListFriends(c.Request.Context(), user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch friends"})
		return
	}

	c.JSON(http.StatusOK, newFriendProfileResponses(friends))
}

// CountFriends godoc
// @Summary      Count a user's friends
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  map[string]int64 "{"count": 3}"
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /users/{id}/friends/count [get]
func (h *FriendHandler) CountFriends(c *gin.Context) {
	user, ok := targetID(c)
	if !ok {
		return
	}

	count, err := h.svc.CountFriends(c.Request.Context(), user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count friends"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// ListPendingRequests godoc
// @Summary      List incoming friend requests
// @Description  Returns the sender profiles of pending requests addressed to the viewer, newest first.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   FriendProfileResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /users/me/requests [get]
func (h *FriendHandler) ListPendingRequests(c *gin.Context) {
	viewerID, _ := c.Get("userID")

	senders, err := h.svc.ListPendingIncoming(c.Request.Context(), viewerID.(uint))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch pending requests"})
		return
	}

	c.JSON(http.StatusOK, newFriendProfileResponses(senders))
}
