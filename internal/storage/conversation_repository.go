package storage

import (
	"courier/internal/models"

	"gorm.io/gorm"
)

// ConversationRepository handles database operations for Conversation and
// ConversationParticipant
type ConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new ConversationRepository
func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// MigrateTable ensures the conversation tables exist
func (r *ConversationRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.Conversation{}, &models.ConversationParticipant{})
}

// Create stores a conversation together with its initial participants in a
// single transaction.
func (r *ConversationRepository) Create(conv *models.Conversation, participants []models.ConversationParticipant) error {
	return Transactional(r.db, func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		for i := range participants {
			participants[i].ConversationID = conv.ID
		}
		return tx.Create(&participants).Error
	})
}

// GetByID returns a conversation with its participants preloaded
func (r *ConversationRepository) GetByID(id string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.Preload("Participants").First(&conv, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &conv, nil
}

// ForUser returns conversations the user participates in, newest first
func (r *ConversationRepository) ForUser(userID uint) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ?", userID).
		Preload("Participants").
		Order("conversations.created_at DESC").
		Find(&convs).Error
	return convs, err
}

// IsParticipant reports whether a user belongs to a conversation
func (r *ConversationRepository) IsParticipant(conversationID string, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}

// ParticipantCount counts members of a conversation
func (r *ConversationRepository) ParticipantCount(conversationID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	return count, err
}

// ParticipantIDs returns the user IDs of all members
func (r *ConversationRepository) ParticipantIDs(conversationID string) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ?", conversationID).
		Pluck("user_id", &ids).Error
	return ids, err
}

// AddParticipant inserts a membership row
func (r *ConversationRepository) AddParticipant(p *models.ConversationParticipant) error {
	return r.db.Create(p).Error
}

// RemoveParticipant deletes a membership row and reports whether one existed
func (r *ConversationRepository) RemoveParticipant(conversationID string, userID uint) (bool, error) {
	result := r.db.Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&models.ConversationParticipant{})
	return result.RowsAffected > 0, result.Error
}

// DeleteParticipantsByUser removes a deleted user's membership rows
func (r *ConversationRepository) DeleteParticipantsByUser(userID uint) error {
	return r.db.Where("user_id = ?", userID).Delete(&models.ConversationParticipant{}).Error
}
