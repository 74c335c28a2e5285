package service

import (
	"encoding/json"

	"courier/internal/logger"
	"courier/internal/models"
	"courier/internal/storage"
)

// Pusher delivers a payload to a user's live connections. The websocket hub
// implements it; a nil Pusher disables push.
type Pusher interface {
	PushToUser(userID uint, payload []byte)
}

// NotificationService reads and mutates a user's notifications and creates
// them in response to message lifecycle events.
type NotificationService struct {
	notifications *storage.NotificationRepository
	pusher        Pusher
}

func NewNotificationService(notifications *storage.NotificationRepository, pusher Pusher) *NotificationService {
	return &NotificationService{notifications: notifications, pusher: pusher}
}

// List returns the user's notifications, optionally unread only.
func (s *NotificationService) List(userID uint, unreadOnly bool, limit int) ([]models.Notification, error) {
	return s.notifications.ByUser(userID, unreadOnly, limit)
}

// UnreadCount counts the user's unread notifications.
func (s *NotificationService) UnreadCount(userID uint) (int64, error) {
	return s.notifications.UnreadCount(userID)
}

// MarkRead marks one notification read; repeating the call is harmless.
func (s *NotificationService) MarkRead(id, userID uint) (int64, error) {
	return s.notifications.MarkRead(id, userID)
}

// MarkAllRead marks all of the user's notifications read.
func (s *NotificationService) MarkAllRead(userID uint) (int64, error) {
	return s.notifications.MarkAllRead(userID)
}

// Notify stores a notification and pushes it to the user's live
// connections. Storage failure is surfaced; push failure is not possible
// (fire and forget).
func (s *NotificationService) Notify(n *models.Notification) error {
	if err := s.notifications.Create(n); err != nil {
		return err
	}
	if s.pusher != nil {
		if payload, err := json.Marshal(n); err == nil {
			s.pusher.PushToUser(n.UserID, payload)
		} else {
			logger.Warningf("Error encoding notification %d for push: %v", n.ID, err)
		}
	}
	return nil
}

// CleanupForMessages drops notifications referencing deleted messages.
func (s *NotificationService) CleanupForMessages(messageIDs []uint) {
	for _, id := range messageIDs {
		if err := s.notifications.DeleteByMessage(id); err != nil {
			logger.Warningf("Error removing notifications for message %d: %v", id, err)
		}
	}
}

// CleanupForUser drops every notification of a deleted account.
func (s *NotificationService) CleanupForUser(userID uint) {
	if err := s.notifications.DeleteByUser(userID); err != nil {
		logger.Warningf("Error removing notifications for user %d: %v", userID, err)
	}
}
