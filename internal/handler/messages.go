package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type sendMessageRequest struct {
	RecipientID uint   `json:"recipient_id" binding:"required"`
	Subject     string `json:"subject"`
	Body        string `json:"body" binding:"required"`
}

type replyRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body" binding:"required"`
}

type editMessageRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body" binding:"required"`
}

type markReadRequest struct {
	IDs []uint `json:"ids" binding:"required"`
}

// SendMessage posts a direct message to another user.
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	senderID := currentUserID(c)
	msg, err := h.messages.Send(senderID, req.RecipientID, req.Subject, req.Body)
	if err != nil {
		fail(c, err)
		return
	}

	h.pageCache.Invalidate(senderID, req.RecipientID)
	c.JSON(http.StatusCreated, msg)
}

// ReplyMessage posts a reply under an existing message.
func (h *Handler) ReplyMessage(c *gin.Context) {
	parentID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	senderID := currentUserID(c)
	msg, err := h.messages.Reply(senderID, parentID, req.Subject, req.Body)
	if err != nil {
		fail(c, err)
		return
	}

	h.pageCache.Invalidate(senderID, msg.RecipientID)
	c.JSON(http.StatusCreated, msg)
}

// EditMessage rewrites the caller's own message.
func (h *Handler) EditMessage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	editorID := currentUserID(c)
	msg, err := h.messages.Edit(editorID, id, req.Subject, req.Body)
	if err != nil {
		fail(c, err)
		return
	}

	h.pageCache.Invalidate(editorID, msg.RecipientID)
	c.JSON(http.StatusOK, msg)
}

// DeleteMessage removes the caller's message along with its replies.
func (h *Handler) DeleteMessage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	requesterID := currentUserID(c)
	msg, err := h.messages.Delete(requesterID, id)
	if err != nil {
		fail(c, err)
		return
	}

	// the recipient's cached pages still show the deleted thread
	if msg.RecipientID != 0 {
		h.pageCache.Invalidate(requesterID, msg.RecipientID)
	} else {
		h.pageCache.Invalidate(requesterID)
	}
	c.Status(http.StatusNoContent)
}

// MarkMessagesRead marks messages addressed to the caller as read.
func (h *Handler) MarkMessagesRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)
	updated, err := h.messages.MarkRead(userID, req.IDs)
	if err != nil {
		fail(c, err)
		return
	}

	h.pageCache.Invalidate(userID)
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// ListMessages pages the direct messages exchanged with another user,
// newest first, with keyset paging on before_id.
func (h *Handler) ListMessages(c *gin.Context) {
	otherID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	beforeID, _ := strconv.ParseUint(c.DefaultQuery("before_id", "0"), 10, 64)

	messages, err := h.messages.ListConversation(currentUserID(c), otherID, limit, uint(beforeID))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// ListThreadRoots returns the caller's top-level messages, newest first.
func (h *Handler) ListThreadRoots(c *gin.Context) {
	roots, err := h.messages.Roots(currentUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": roots})
}

// UnreadMessages lists unread messages addressed to the caller.
func (h *Handler) UnreadMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	messages, err := h.messages.UnreadMessages(currentUserID(c), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// UnreadMessageCount counts unread messages addressed to the caller.
func (h *Handler) UnreadMessageCount(c *gin.Context) {
	count, err := h.messages.UnreadCount(currentUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// MessageHistory returns a message's edit history, newest edit first.
func (h *Handler) MessageHistory(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	history, err := h.messages.History(currentUserID(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// MessageThread returns the full reply tree under a root message.
func (h *Handler) MessageThread(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	thread, err := h.messages.Thread(currentUserID(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}
