package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type createChatRequest struct {
	Title          string `json:"title" binding:"required"`
	ParticipantIDs []uint `json:"participant_ids"`
}

type chatMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

type participantRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// CreateChat starts a group conversation with the caller as a member.
func (h *Handler) CreateChat(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.conversations.Create(currentUserID(c), req.Title, req.ParticipantIDs)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

// ListChats returns the conversations the caller participates in.
func (h *Handler) ListChats(c *gin.Context) {
	chats, err := h.conversations.ListForUser(currentUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": chats})
}

// GetChat returns one conversation with its participants.
func (h *Handler) GetChat(c *gin.Context) {
	conv, err := h.conversations.Get(currentUserID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// ChatMessages pages the conversation's messages, oldest first.
func (h *Handler) ChatMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, err := h.conversations.Messages(currentUserID(c), c.Param("id"), limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// SendChatMessage posts a message into a conversation.
func (h *Handler) SendChatMessage(c *gin.Context) {
	var req chatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	senderID := currentUserID(c)
	msg, err := h.conversations.Send(senderID, c.Param("id"), req.Body)
	if err != nil {
		fail(c, err)
		return
	}

	h.pageCache.Invalidate(senderID)
	c.JSON(http.StatusCreated, msg)
}

// AddChatParticipant adds a user to a conversation the caller is in.
func (h *Handler) AddChatParticipant(c *gin.Context) {
	var req participantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.conversations.AddParticipant(currentUserID(c), c.Param("id"), req.UserID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": req.UserID})
}

// RemoveChatParticipant removes a member from a conversation.
func (h *Handler) RemoveChatParticipant(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}

	if err := h.conversations.RemoveParticipant(currentUserID(c), c.Param("id"), userID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": userID})
}
