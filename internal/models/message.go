package models

import (
	"time"
)

// ChatMessage is a direct message between two users.
type ChatMessage struct {
	BaseModel
	SenderID   string    `gorm:"size:36;index:idx_pair,priority:1" json:"senderId"`
	ReceiverID string    `gorm:"size:36;index:idx_pair,priority:2;index" json:"receiverId"`
	Content    string    `gorm:"type:text" json:"content"`
	Timestamp  time.Time `gorm:"index" json:"timestamp"`
	Read       bool      `gorm:"column:is_read;default:false" json:"read"`
}
