package handler

import (
	"net/http"
	"strconv"

	"whispr/backend/internal/cache"
	"whispr/backend/internal/models"
	"whispr/backend/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// region --- DTOs ---

// PublicUserResponse defines the structure for a user's public profile.
type PublicUserResponse struct {
	ID             uint                        `json:"id" example:"1"`
	Username       string                      `json:"username" example:"testuser"`
	FullName       string                      `json:"full_name" example:"Test User"`
	Bio            string                      `json:"bio,omitempty"`
	AvatarURL      string                      `json:"avatar_url,omitempty"`
	FriendsCount   int64                       `json:"friends_count"`
	Relationship   *service.RelationshipStatus `json:"relationship,omitempty"`
	RequestedByMe  bool                        `json:"requested_by_me"`
}

// PrivateUserResponse defines the structure for the authenticated user's own profile.
type PrivateUserResponse struct {
	ID           uint   `json:"id" example:"1"`
	Username     string `json:"username" example:"testuser"`
	Email        string `json:"email" example:"test@example.com"`
	FullName     string `json:"full_name" example:"Test User"`
	Bio          string `json:"bio,omitempty"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	FriendsCount int64  `json:"friends_count"`
}

// UpdateProfileInput carries the owner-mutable profile fields. Pointers
// distinguish "leave unchanged" from "set to empty".
type UpdateProfileInput struct {
	Username  *string `json:"username"`
	FullName  *string `json:"full_name"`
	Bio       *string `json:"bio"`
	AvatarURL *string `json:"avatar_url"`
}

// endregion

// UserHandler serves profile reads, search and owner updates.
type UserHandler struct {
	db      *gorm.DB
	friends *service.FriendService
	cache   *cache.Cache
}

func NewUserHandler(db *gorm.DB, friends *service.FriendService, c *cache.Cache) *UserHandler {
	return &UserHandler{db: db, friends: friends, cache: c}
}

// getProfile loads a profile, going through the snapshot cache.
func (h *UserHandler) getProfile(c *gin.Context, userID uint) (*models.User, bool) {
	var user models.User
	if h.cache.Get(c.Request.Context(), cache.ProfileKey(userID), &user) {
		return &user, true
	}
	if err := h.db.First(&user, userID).Error; err != nil {
		return nil, false
	}
	h.cache.Set(c.Request.Context(), cache.ProfileKey(userID), user)
	return &user, true
}

// Me godoc
// @Summary      Get current user's info
// @Description  Retrieves the private profile for the currently authenticated user.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  PrivateUserResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /users/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	viewerID, _ := c.Get("userID")

	user, ok := h.getProfile(c, viewerID.(uint))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	friendsCount, _ := h.friends.CountFriends(c.Request.Context(), user.ID)

	c.JSON(http.StatusOK, PrivateUserResponse{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		FullName:     user.FullName,
		Bio:          user.Bio,
		AvatarURL:    user.AvatarURL,
		FriendsCount: friendsCount,
	})
}

// GetUserByID godoc
// @Summary      Get user by ID
// @Description  Retrieves the public profile for a specific user, annotated with the relationship to the viewer.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  PublicUserResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /users/{id} [get]
func (h *UserHandler) GetUserByID(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	targetUserID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	if viewerID.(uint) == uint(targetUserID) {
		h.Me(c)
		return
	}

	user, ok := h.getProfile(c, uint(targetUserID))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	resp := h.buildPublicUserResponse(c, *user, viewerID.(uint))
	c.JSON(http.StatusOK, resp)
}

func (h *UserHandler) buildPublicUserResponse(c *gin.Context, user models.User, viewerID uint) PublicUserResponse {
	ctx := c.Request.Context()

	friendsCount, _ := h.friends.CountFriends(ctx, user.ID)

	resp := PublicUserResponse{
		ID:           user.ID,
		Username:     user.Username,
		FullName:     user.FullName,
		Bio:          user.Bio,
		AvatarURL:    user.AvatarURL,
		FriendsCount: friendsCount,
	}

	status, viewerIsSender, err := h.friends.Status(ctx, viewerID, user.ID)
	if err == nil && status != service.RelationNone {
		resp.Relationship = &status
		resp.RequestedByMe = viewerIsSender
	}

	return resp
}

// SearchUsers godoc
// @Summary      Search for users
// @Description  Searches for users by username or full name with pagination.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        q     query     string  false  "Search query"
// @Param        page  query     int     false  "Page number" default(1)
// @Param        limit query     int     false  "Items per page" default(10)
// @Success      200   {object}  PaginatedResponse[PublicUserResponse]
// @Failure      401   {object}  ErrorResponse
// @Router       /users [get]
func (h *UserHandler) SearchUsers(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	searchQuery := c.Query("q")

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100 // Max limit
	}

	query := h.db.Model(&models.User{}).Where("id <> ?", viewerID)
	if searchQuery != "" {
		pattern := "%" + searchQuery + "%"
		query = query.Where("username ILIKE ? OR full_name ILIKE ?", pattern, pattern)
	}

	result, err := Paginate[models.User](query, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve users"})
		return
	}

	responses := make([]PublicUserResponse, 0, len(result.Data))
	for _, user := range result.Data {
		responses = append(responses, h.buildPublicUserResponse(c, user, viewerID.(uint)))
	}

	c.JSON(http.StatusOK, PaginatedResponse[PublicUserResponse]{Data: responses, Meta: result.Meta})
}

// UpdateProfile godoc
// @Summary      Update own profile
// @Description  Updates the authenticated user's profile fields and invalidates the cached snapshot.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body UpdateProfileInput true "Profile fields"
// @Success      200  {object}  PrivateUserResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse "Username taken"
// @Router       /users/me [put]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	viewerID, _ := c.Get("userID")

	var input UpdateProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]any{}
	if input.Username != nil {
		updates["username"] = *input.Username
	}
	if input.FullName != nil {
		updates["full_name"] = *input.FullName
	}
	if input.Bio != nil {
		updates["bio"] = *input.Bio
	}
	if input.AvatarURL != nil {
		updates["avatar_url"] = *input.AvatarURL
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
		return
	}

	if input.Username != nil {
		var existing models.User
		if err := h.db.Where("username = ? AND id <> ?", *input.Username, viewerID).First(&existing).Error; err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "Username already taken"})
			return
		}
	}

	// Ownership is part of the predicate: only the viewer's own row matches.
	if err := h.db.Model(&models.User{}).Where("id = ?", viewerID).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	// Invalidate before the next read rather than waiting out the window.
	h.cache.Invalidate(c.Request.Context(), cache.ProfileKey(viewerID.(uint)))

	h.Me(c)
}
