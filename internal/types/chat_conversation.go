package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatConversation struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	VideoID string     `gorm:"column:video_id;not null;index" json:"video_id"`
	UserID  *uuid.UUID `gorm:"type:uuid;column:user_id;index" json:"user_id,omitempty"`

	// Next turn sequence number; appends are serialized per conversation.
	NextSeq int64 `gorm:"column:next_seq;not null;default:0" json:"next_seq"`

	LastMessageAt time.Time `gorm:"column:last_message_at" json:"last_message_at"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ChatConversation) TableName() string { return "chat_conversation" }
