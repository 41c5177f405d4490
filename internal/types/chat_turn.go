package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TurnStatusAwaitingAnswer = "awaiting_answer"
	TurnStatusAnswered       = "answered"
	TurnStatusFailed         = "failed"
)

type ChatTurnRow struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	ConversationID uuid.UUID `gorm:"type:uuid;not null;index;index:idx_chat_turn_conv_seq,unique,priority:1" json:"conversation_id"`

	Seq int64 `gorm:"column:seq;not null;index:idx_chat_turn_conv_seq,unique,priority:2" json:"seq"`

	Question string `gorm:"column:question;type:text;not null" json:"question"`
	Answer   string `gorm:"column:answer;type:text;not null;default:''" json:"answer"`

	Status string `gorm:"column:status;not null;default:'awaiting_answer';index" json:"status"`

	RelatedConcepts datatypes.JSON `gorm:"column:related_concepts;type:jsonb" json:"related_concepts,omitempty"` // []string
	Citations       datatypes.JSON `gorm:"column:citations;type:jsonb" json:"citations,omitempty"`               // []Citation

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ChatTurnRow) TableName() string { return "chat_turn" }
