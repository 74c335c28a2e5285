package models

import "time"

// User is a registered account that can send and receive messages.
type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:150;not null" json:"username"`
	Email        string    `gorm:"uniqueIndex;size:191;not null" json:"email"`
	PasswordHash string    `gorm:"size:191" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
