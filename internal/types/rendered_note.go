package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RenderedNote stores one format's output for a video, all three tiers.
// One row per (video, format); re-processing overwrites in place.
type RenderedNote struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	VideoID string     `gorm:"column:video_id;not null;index:idx_rendered_note_video_format,unique,priority:1" json:"video_id"`
	UserID  *uuid.UUID `gorm:"type:uuid;column:user_id;index" json:"user_id,omitempty"`

	Format string `gorm:"column:format;not null;index:idx_rendered_note_video_format,unique,priority:2" json:"format"`

	Brief         string `gorm:"column:brief;type:text;not null;default:''" json:"brief"`
	Standard      string `gorm:"column:standard;type:text;not null;default:''" json:"standard"`
	Comprehensive string `gorm:"column:comprehensive;type:text;not null;default:''" json:"comprehensive"`

	AnalysisVersion int `gorm:"column:analysis_version;not null;default:1" json:"analysis_version"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (RenderedNote) TableName() string { return "rendered_note" }
