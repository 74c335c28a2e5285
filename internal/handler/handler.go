package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"courier/internal/cache"
	"courier/internal/config"
	"courier/internal/logger"
	"courier/internal/service"
	"courier/internal/storage"
	"courier/internal/ws"
)

// Handler carries the services behind the HTTP API.
type Handler struct {
	cfg           *config.Config
	users         *service.UserService
	messages      *service.MessageService
	notifications *service.NotificationService
	conversations *service.ConversationService
	pageCache     *cache.ResponseCache
	hub           *ws.Hub
}

func New(cfg *config.Config, users *service.UserService, messages *service.MessageService, notifications *service.NotificationService, conversations *service.ConversationService, pageCache *cache.ResponseCache, hub *ws.Hub) *Handler {
	return &Handler{
		cfg:           cfg,
		users:         users,
		messages:      messages,
		notifications: notifications,
		conversations: conversations,
		pageCache:     pageCache,
		hub:           hub,
	}
}

// currentUserID reads the authenticated user set by the auth middleware.
func currentUserID(c *gin.Context) uint {
	v, _ := c.Get(ctxUserIDKey)
	id, _ := v.(uint)
	return id
}

// paramID parses a numeric path parameter.
func paramID(c *gin.Context, name string) (uint, bool) {
	id64, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id64 == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id64), true
}

// fail translates service errors onto the HTTP error envelope.
func fail(c *gin.Context, err error) {
	incrementCounter(&totalErrors)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, service.ErrSelfMessage),
		errors.Is(err, service.ErrDuplicateParticipant),
		errors.Is(err, service.ErrLastParticipant):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Errorf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
