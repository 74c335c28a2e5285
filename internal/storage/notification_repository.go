package storage

import (
	"courier/internal/models"

	"gorm.io/gorm"
)

// NotificationRepository handles database operations for Notification
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// MigrateTable ensures the Notification table exists
func (r *NotificationRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.Notification{})
}

// Create inserts a new Notification
func (r *NotificationRepository) Create(n *models.Notification) error {
	return r.db.Create(n).Error
}

// ByUser returns a user's notifications, newest first. With unreadOnly set
// only unread rows are returned.
func (r *NotificationRepository) ByUser(userID uint, unreadOnly bool, limit int) ([]models.Notification, error) {
	q := r.db.Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var list []models.Notification
	err := q.Order("created_at DESC").Find(&list).Error
	return list, err
}

// UnreadCount counts unread notifications for a user
func (r *NotificationRepository) UnreadCount(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkRead marks one notification read; already-read rows update nothing.
func (r *NotificationRepository) MarkRead(id, userID uint) (int64, error) {
	result := r.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND is_read = ?", id, userID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

// MarkAllRead marks every unread notification of the user as read
func (r *NotificationRepository) MarkAllRead(userID uint) (int64, error) {
	result := r.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

// DeleteByMessage removes notifications linked to a deleted message
func (r *NotificationRepository) DeleteByMessage(messageID uint) error {
	return r.db.Where("message_id = ?", messageID).Delete(&models.Notification{}).Error
}

// DeleteByUser removes a deleted user's notifications
func (r *NotificationRepository) DeleteByUser(userID uint) error {
	return r.db.Where("user_id = ?", userID).Delete(&models.Notification{}).Error
}
