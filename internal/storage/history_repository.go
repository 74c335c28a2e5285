package storage

import (
	"courier/internal/models"

	"gorm.io/gorm"
)

// HistoryRepository handles database operations for MessageHistory
type HistoryRepository struct {
	db *gorm.DB
}

// NewHistoryRepository creates a new HistoryRepository
func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// MigrateTable ensures the MessageHistory table exists
func (r *HistoryRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.MessageHistory{})
}

// Create inserts a new history snapshot
func (r *HistoryRepository) Create(entry *models.MessageHistory) error {
	return r.db.Create(entry).Error
}

// ByMessage returns all history entries of a message, newest first
func (r *HistoryRepository) ByMessage(messageID uint) ([]models.MessageHistory, error) {
	var entries []models.MessageHistory
	err := r.db.Where("message_id = ?", messageID).Order("edited_at DESC").Find(&entries).Error
	return entries, err
}

// DeleteByMessage removes the history of a deleted message
func (r *HistoryRepository) DeleteByMessage(messageID uint) error {
	return r.db.Where("message_id = ?", messageID).Delete(&models.MessageHistory{}).Error
}

// DeleteByEditor removes history entries written by a deleted user
func (r *HistoryRepository) DeleteByEditor(userID uint) error {
	return r.db.Where("editor_id = ?", userID).Delete(&models.MessageHistory{}).Error
}
