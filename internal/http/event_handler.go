package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"meetup-sync/internal/service"
)

// EventHandler expone eventos grupales y su disponibilidad.
type EventHandler struct {
	logger *zap.Logger
	svc    *service.EventService
}

func NewEventHandler(logger *zap.Logger, svc *service.EventService) *EventHandler {
	return &EventHandler{logger: logger, svc: svc}
}

// Create maneja POST /events.
func (h *EventHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		StartDate   string `json:"startDate" binding:"required,calday"`
		EndDate     string `json:"endDate" binding:"required,calday"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		if hasTagFailure(err, calendarDayTag) {
			respondError(c, h.logger, service.ErrInvalidDateFormat)
			return
		}
		respondInvalidRequest(c, h.logger, err)
		return
	}

	event, err := h.svc.Create(c.Request.Context(), userID, service.CreateEventInput{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event": event})
}

// List maneja GET /events: eventos en los que participa el usuario.
func (h *EventHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	events, err := h.svc.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// Join maneja POST /events/join.
func (h *EventHandler) Join(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, h.logger, err)
		return
	}
	event, err := h.svc.Join(c.Request.Context(), userID, req.Code)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

func (h *EventHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	event, err := h.svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

func (h *EventHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Leave maneja DELETE /events/:id/participants/me.
func (h *EventHandler) Leave(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.svc.Leave(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Availability maneja GET /events/:id/availability.
func (h *EventHandler) Availability(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	free, err := h.svc.FreeDays(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"freeDays": free})
}
