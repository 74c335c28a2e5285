package models

import "time"

// Conversation groups multiple participants exchanging messages.
type Conversation struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Title     string    `gorm:"size:200" json:"title"`
	CreatedAt time.Time `json:"created_at"`

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

// ConversationParticipant is the membership row linking a user into a
// conversation. A (conversation, user) pair is unique.
type ConversationParticipant struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string    `gorm:"size:36;index:idx_conversation_user,unique;not null" json:"conversation_id"`
	UserID         uint      `gorm:"index:idx_conversation_user,unique;not null" json:"user_id"`
	JoinedAt       time.Time `json:"joined_at"`

	Conversation Conversation `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
	User         User         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
