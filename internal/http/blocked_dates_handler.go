package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"meetup-sync/internal/service"
)

// BlockedDatesHandler expone los dias bloqueados del usuario autenticado.
type BlockedDatesHandler struct {
	logger *zap.Logger
	svc    *service.BlockedDatesService
}

func NewBlockedDatesHandler(logger *zap.Logger, svc *service.BlockedDatesService) *BlockedDatesHandler {
	return &BlockedDatesHandler{logger: logger, svc: svc}
}

// Add maneja PUT /blockedDates/:fromDate/:toDate.
func (h *BlockedDatesHandler) Add(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.svc.AddRange(c.Request.Context(), userID, c.Param("fromDate"), c.Param("toDate")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Blocked dates added successfully."})
}

// Remove maneja DELETE /blockedDates/:fromDate/:toDate.
func (h *BlockedDatesHandler) Remove(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.svc.RemoveRange(c.Request.Context(), userID, c.Param("fromDate"), c.Param("toDate")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Blocked dates deleted successfully."})
}

// List maneja GET /blockedDates.
func (h *BlockedDatesHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	days, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blockedDates": days})
}
