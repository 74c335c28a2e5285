package models

import "time"

// Message is a direct message between two users. A non-nil ParentID links
// a reply into its thread; the root of a thread has ParentID nil.
// Messages sent into a group conversation carry a ConversationID instead
// of a direct recipient pair semantics, but share this table.
type Message struct {
	ID       uint `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID uint `gorm:"index;not null" json:"sender_id"`
	// RecipientID is 0 for conversation messages, which address every
	// participant instead of a single user.
	RecipientID uint `gorm:"index" json:"recipient_id"`
	Subject     string     `gorm:"size:200" json:"subject"`
	Body        string     `gorm:"type:text" json:"body"`
	Timestamp   time.Time  `gorm:"index" json:"timestamp"`
	IsRead      bool       `gorm:"default:false" json:"is_read"`
	Edited      bool       `gorm:"default:false" json:"edited"`
	LastEdited  *time.Time `json:"last_edited,omitempty"`

	ParentID *uint     `gorm:"index" json:"parent_id,omitempty"`
	Parent   *Message  `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`
	Replies  []Message `gorm:"foreignKey:ParentID" json:"-"`

	ConversationID *string `gorm:"index;size:36" json:"conversation_id,omitempty"`

	Sender User `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsRoot reports whether the message starts a thread.
func (m *Message) IsRoot() bool {
	return m.ParentID == nil
}

// ThreadNode is a message with its replies nested under it, produced when
// rendering a whole thread.
type ThreadNode struct {
	Message Message       `json:"message"`
	Depth   int           `json:"depth"`
	Replies []*ThreadNode `json:"replies"`
}

// MessageHistory keeps the previous subject and body of an edited message.
type MessageHistory struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageID  uint      `gorm:"index;not null" json:"message_id"`
	OldSubject string    `gorm:"size:200" json:"old_subject"`
	OldBody    string    `gorm:"type:text" json:"old_body"`
	EditorID   uint      `gorm:"index;not null" json:"editor_id"`
	EditedAt   time.Time `json:"edited_at"`

	Message Message `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"-"`
	Editor  User    `gorm:"foreignKey:EditorID;constraint:OnDelete:CASCADE" json:"-"`
}
