package models

import "time"

// notification types
const (
	NotificationTypeMessage = "message"
	NotificationTypeEdit    = "edit"
	NotificationTypeSystem  = "system"
)

// Notification tells a user that something happened to a message addressed
// to them. MessageID is nil for system notifications.
type Notification struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	MessageID *uint     `gorm:"index" json:"message_id,omitempty"`
	Type      string    `gorm:"size:20;default:message" json:"type"`
	Title     string    `gorm:"size:200" json:"title"`
	Preview   string    `gorm:"size:500" json:"preview"`
	IsRead    bool      `gorm:"default:false" json:"is_read"`
	CreatedAt time.Time `json:"created_at"`

	User    User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Message *Message `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"-"`
}
