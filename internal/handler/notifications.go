package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ListNotifications returns the caller's notifications, newest first.
// unread=true restricts the result to unread ones.
func (h *Handler) ListNotifications(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	notifications, err := h.notifications.List(currentUserID(c), unreadOnly, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// UnreadNotificationCount counts the caller's unread notifications.
func (h *Handler) UnreadNotificationCount(c *gin.Context) {
	count, err := h.notifications.UnreadCount(currentUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// MarkNotificationRead marks a single notification of the caller as read.
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	updated, err := h.notifications.MarkRead(id, currentUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// MarkAllNotificationsRead marks every unread notification of the caller.
func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	updated, err := h.notifications.MarkAllRead(currentUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}
