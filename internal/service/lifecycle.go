package service

import (
	"fmt"
	"time"

	"courier/internal/events"
	"courier/internal/logger"
	"courier/internal/models"
	"courier/internal/storage"
)

const previewLimit = 100

// welcome message sent to freshly registered accounts
const (
	welcomeSubject = "Welcome to our messaging platform!"
	welcomeBody    = "Welcome! We're glad to have you here."
)

// LifecycleHooks subscribes the side effects derived from message and user
// lifecycle events: notification on new message, history snapshot plus
// edit notification on content change, dependent-row cleanup on deletion,
// and the welcome message for new users.
type LifecycleHooks struct {
	notifications *NotificationService
	messages      *MessageService
	messageRepo   *storage.MessageRepository
	history       *storage.HistoryRepository
	users         *storage.UserRepository
	conversations *storage.ConversationRepository
	systemUser    string
}

func NewLifecycleHooks(notifications *NotificationService, messages *MessageService, messageRepo *storage.MessageRepository, history *storage.HistoryRepository, users *storage.UserRepository, conversations *storage.ConversationRepository, systemUser string) *LifecycleHooks {
	return &LifecycleHooks{
		notifications: notifications,
		messages:      messages,
		messageRepo:   messageRepo,
		history:       history,
		users:         users,
		conversations: conversations,
		systemUser:    systemUser,
	}
}

// Register wires the hooks onto the bus.
func (h *LifecycleHooks) Register(bus *events.Bus) {
	bus.Subscribe(events.MessageCreated, h.onMessageCreated)
	bus.Subscribe(events.MessageUpdated, h.onMessageUpdated)
	bus.Subscribe(events.MessageDeleted, h.onMessageDeleted)
	bus.Subscribe(events.UserCreated, h.onUserCreated)
	bus.Subscribe(events.UserDeleted, h.onUserDeleted)
}

// onMessageCreated creates exactly one notification for the recipient of a
// new message. Updates never pass through here, so edits produce none.
func (h *LifecycleHooks) onMessageCreated(payload any) {
	p, ok := payload.(*events.MessageCreatedPayload)
	if !ok || p.Message == nil {
		return
	}

	// conversation messages notify exactly the members in the payload; a
	// single-member conversation legitimately notifies nobody. Only direct
	// messages fall back to the addressed recipient.
	recipients := p.RecipientIDs
	if p.Message.ConversationID == nil && len(recipients) == 0 {
		recipients = []uint{p.Message.RecipientID}
	}
	for _, userID := range recipients {
		n := &models.Notification{
			UserID:    userID,
			MessageID: &p.Message.ID,
			Type:      models.NotificationTypeMessage,
			Title:     fmt.Sprintf("New message from %s", p.Sender.Username),
			Preview:   preview(p.Message.Subject, p.Message.Body),
			CreatedAt: time.Now(),
		}
		if err := h.notifications.Notify(n); err != nil {
			logger.Warningf("Error creating notification for message %d: %v", p.Message.ID, err)
		}
	}
}

// onMessageUpdated snapshots the pre-edit content and notifies the
// recipient that the message changed. No-op saves carry Changed=false and
// write nothing.
func (h *LifecycleHooks) onMessageUpdated(payload any) {
	p, ok := payload.(*events.MessageUpdatedPayload)
	if !ok || p.Message == nil || !p.Changed {
		return
	}

	entry := &models.MessageHistory{
		MessageID:  p.Message.ID,
		OldSubject: p.OldSubject,
		OldBody:    p.OldBody,
		EditorID:   p.EditorID,
		EditedAt:   time.Now(),
	}
	if err := h.history.Create(entry); err != nil {
		logger.Warningf("Error recording history for message %d: %v", p.Message.ID, err)
	}

	editor, err := h.users.GetByID(p.EditorID)
	if err != nil {
		logger.Warningf("Error loading editor %d: %v", p.EditorID, err)
		return
	}
	n := &models.Notification{
		UserID:    p.Message.RecipientID,
		MessageID: &p.Message.ID,
		Type:      models.NotificationTypeEdit,
		Title:     fmt.Sprintf("Message edited by %s", editor.Username),
		Preview:   preview(p.Message.Subject, p.Message.Body),
		CreatedAt: time.Now(),
	}
	if err := h.notifications.Notify(n); err != nil {
		logger.Warningf("Error creating edit notification for message %d: %v", p.Message.ID, err)
	}
}

// onMessageDeleted removes history and notifications of the deleted thread.
func (h *LifecycleHooks) onMessageDeleted(payload any) {
	p, ok := payload.(*events.MessageDeletedPayload)
	if !ok {
		return
	}
	for _, id := range p.MessageIDs {
		if err := h.history.DeleteByMessage(id); err != nil {
			logger.Warningf("Error removing history for message %d: %v", id, err)
		}
	}
	h.notifications.CleanupForMessages(p.MessageIDs)
}

// onUserCreated greets a new account with a message from the system user,
// which in turn produces their first notification. Skipped with a warning
// when no system user is configured or it does not exist.
func (h *LifecycleHooks) onUserCreated(payload any) {
	p, ok := payload.(*events.UserCreatedPayload)
	if !ok || p.User == nil {
		return
	}
	if h.systemUser == "" {
		return
	}

	sysUser, err := h.users.GetByUsername(h.systemUser)
	if err != nil {
		logger.Warningf("System user %q not found, skipping welcome message: %v", h.systemUser, err)
		return
	}
	if sysUser.ID == p.User.ID {
		return
	}

	if _, err := h.messages.Send(sysUser.ID, p.User.ID, welcomeSubject, welcomeBody); err != nil {
		logger.Warningf("Error sending welcome message to user %d: %v", p.User.ID, err)
	}
}

// onUserDeleted drops everything a removed account left behind: its
// messages with their history and notifications, its own notifications,
// history entries it wrote, and its conversation memberships.
func (h *LifecycleHooks) onUserDeleted(payload any) {
	p, ok := payload.(*events.UserDeletedPayload)
	if !ok {
		return
	}

	msgIDs, err := h.messageRepo.IDsByUser(p.UserID)
	if err != nil {
		logger.Warningf("Error listing messages of deleted user %d: %v", p.UserID, err)
	}
	for _, id := range msgIDs {
		if err := h.history.DeleteByMessage(id); err != nil {
			logger.Warningf("Error removing history for message %d: %v", id, err)
		}
	}
	h.notifications.CleanupForMessages(msgIDs)

	if err := h.messageRepo.DeleteByUser(p.UserID); err != nil {
		logger.Warningf("Error removing messages of deleted user %d: %v", p.UserID, err)
	}
	if err := h.history.DeleteByEditor(p.UserID); err != nil {
		logger.Warningf("Error removing history edits of deleted user %d: %v", p.UserID, err)
	}
	h.notifications.CleanupForUser(p.UserID)
	if err := h.conversations.DeleteParticipantsByUser(p.UserID); err != nil {
		logger.Warningf("Error removing memberships of deleted user %d: %v", p.UserID, err)
	}
}

// preview renders "subject: body" truncated like the notification feed
// shows it.
func preview(subject, body string) string {
	text := body
	if runes := []rune(text); len(runes) > previewLimit {
		text = string(runes[:previewLimit]) + "..."
	}
	if subject == "" {
		return text
	}
	return subject + ": " + text
}
