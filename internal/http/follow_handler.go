package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"meetup-sync/internal/service"
)

type FollowHandler struct {
	logger *zap.Logger
	svc    *service.FollowService
}

func NewFollowHandler(logger *zap.Logger, svc *service.FollowService) *FollowHandler {
	return &FollowHandler{logger: logger, svc: svc}
}

// Follow maneja POST /users/:id/follow.
func (h *FollowHandler) Follow(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.svc.Follow(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Unfollow maneja DELETE /users/:id/follow.
func (h *FollowHandler) Unfollow(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.svc.Unfollow(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *FollowHandler) Followers(c *gin.Context) {
	users, err := h.svc.Followers(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *FollowHandler) Following(c *gin.Context) {
	users, err := h.svc.Following(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}
