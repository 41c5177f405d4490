package types

import (
	"time"

	"github.com/google/uuid"
)

// AICallLog records one generative-backend call for auditing and cost tracking.
type AICallLog struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	Purpose string `gorm:"column:purpose;not null;index" json:"purpose"` // chapters|concepts|relationships|render:<format>|chat
	Model   string `gorm:"column:model" json:"model"`

	VideoID string `gorm:"column:video_id;index" json:"video_id,omitempty"`

	PromptChars     int   `gorm:"column:prompt_chars;not null;default:0" json:"prompt_chars"`
	CompletionChars int   `gorm:"column:completion_chars;not null;default:0" json:"completion_chars"`
	LatencyMs       int64 `gorm:"column:latency_ms;not null;default:0" json:"latency_ms"`

	ErrorKind string `gorm:"column:error_kind" json:"error_kind,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (AICallLog) TableName() string { return "ai_call_log" }
