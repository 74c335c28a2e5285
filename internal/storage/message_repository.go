package storage

import (
	"time"

	"courier/internal/models"

	"gorm.io/gorm"
)

// MessageRepository handles database operations for Message
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// MigrateTable ensures the Message table exists
func (r *MessageRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.Message{})
}

// Create inserts a new Message
func (r *MessageRepository) Create(msg *models.Message) error {
	return r.db.Create(msg).Error
}

// GetByID returns the message with the given ID
func (r *MessageRepository) GetByID(id uint) (*models.Message, error) {
	var msg models.Message
	if err := r.db.First(&msg, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &msg, nil
}

// UpdateContent rewrites subject and body of an edited message and flags it
// as edited.
func (r *MessageRepository) UpdateContent(id uint, subject, body string, editedAt time.Time) error {
	return r.db.Model(&models.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"subject":     subject,
			"body":        body,
			"edited":      true,
			"last_edited": editedAt,
		}).Error
}

// MarkRead flips IsRead for the given messages addressed to recipientID.
// Rows already read are left untouched, which makes the call idempotent.
func (r *MessageRepository) MarkRead(recipientID uint, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.Message{}).
		Where("recipient_id = ? AND id IN ? AND is_read = ?", recipientID, ids, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

// ListBetween returns direct messages exchanged by two users, newest first.
// When beforeID > 0 only messages with a smaller ID are returned, which
// pages backwards through the conversation.
func (r *MessageRepository) ListBetween(userID, otherID uint, limit int, beforeID uint) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := r.db.Where(
		"conversation_id IS NULL AND ((sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?))",
		userID, otherID, otherID, userID,
	)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}
	var msgs []models.Message
	if err := q.Order("id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// RootsForUser returns thread roots the user participates in, newest first.
func (r *MessageRepository) RootsForUser(userID uint) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.
		Where("parent_id IS NULL AND conversation_id IS NULL AND (sender_id = ? OR recipient_id = ?)", userID, userID).
		Order("timestamp DESC").
		Find(&msgs).Error
	return msgs, err
}

// Thread returns the root message and every descendant reply. The tree is
// walked level by level so arbitrarily deep threads need one query per
// depth instead of one per message.
func (r *MessageRepository) Thread(rootID uint) ([]models.Message, error) {
	root, err := r.GetByID(rootID)
	if err != nil {
		return nil, err
	}

	all := []models.Message{*root}
	frontier := []uint{rootID}

	for len(frontier) > 0 {
		var replies []models.Message
		if err := r.db.Where("parent_id IN ?", frontier).Order("timestamp ASC").Find(&replies).Error; err != nil {
			return nil, err
		}
		if len(replies) == 0 {
			break
		}
		frontier = frontier[:0]
		for _, reply := range replies {
			all = append(all, reply)
			frontier = append(frontier, reply.ID)
		}
	}
	return all, nil
}

// UnreadForUser returns unread messages addressed to the user, newest first.
func (r *MessageRepository) UnreadForUser(userID uint, limit int) ([]models.Message, error) {
	q := r.db.Where("recipient_id = ? AND is_read = ?", userID, false).Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var msgs []models.Message
	err := q.Find(&msgs).Error
	return msgs, err
}

// UnreadCountForUser counts unread messages addressed to the user.
func (r *MessageRepository) UnreadCountForUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Message{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// Delete removes a message row. Replies, history and notifications are
// removed by their cleanup handlers and foreign key constraints.
func (r *MessageRepository) Delete(id uint) error {
	return r.db.Delete(&models.Message{}, id).Error
}

// DeleteReplies removes every descendant reply of a message.
func (r *MessageRepository) DeleteReplies(rootID uint) error {
	frontier := []uint{rootID}
	for len(frontier) > 0 {
		var ids []uint
		if err := r.db.Model(&models.Message{}).Where("parent_id IN ?", frontier).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := r.db.Delete(&models.Message{}, ids).Error; err != nil {
			return err
		}
		frontier = ids
	}
	return nil
}

// DeleteByUser removes every message the user sent or received.
func (r *MessageRepository) DeleteByUser(userID uint) error {
	return r.db.Where("sender_id = ? OR recipient_id = ?", userID, userID).Delete(&models.Message{}).Error
}

// IDsByUser returns the IDs of every message the user sent or received.
func (r *MessageRepository) IDsByUser(userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Message{}).
		Where("sender_id = ? OR recipient_id = ?", userID, userID).
		Pluck("id", &ids).Error
	return ids, err
}

// ByConversation returns a page of a group conversation's messages, oldest
// first.
func (r *MessageRepository) ByConversation(conversationID string, limit, offset int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var msgs []models.Message
	err := r.db.Where("conversation_id = ?", conversationID).
		Order("timestamp ASC").
		Limit(limit).
		Offset(offset).
		Find(&msgs).Error
	return msgs, err
}

// EachPage streams all messages to fn one page at a time, ordered by ID.
// Iteration stops when fn returns false or the result set is exhausted.
func (r *MessageRepository) EachPage(pageSize int, fn func(page []models.Message) bool) error {
	if pageSize <= 0 {
		pageSize = 100
	}
	offset := 0
	for {
		var page []models.Message
		if err := r.db.Order("id ASC").Limit(pageSize).Offset(offset).Find(&page).Error; err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		if !fn(page) {
			return nil
		}
		offset += pageSize
	}
}
