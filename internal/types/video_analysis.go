package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// VideoAnalysisRow is the persisted artifact record. The artifact JSON is the
// whole EnhancedVideoAnalysis; rows are append-only per (video, version).
type VideoAnalysisRow struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	VideoID string     `gorm:"column:video_id;not null;index:idx_video_analysis_video_version,unique,priority:1" json:"video_id"`
	UserID  *uuid.UUID `gorm:"type:uuid;column:user_id;index" json:"user_id,omitempty"`

	Version int `gorm:"column:version;not null;default:1;index:idx_video_analysis_video_version,unique,priority:2" json:"version"`

	Title        string `gorm:"column:title" json:"title"`
	DegradedMode bool   `gorm:"column:degraded_mode;not null;default:false" json:"degraded_mode"`

	Artifact datatypes.JSON `gorm:"column:artifact;type:jsonb;not null" json:"artifact"` // EnhancedVideoAnalysis

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (VideoAnalysisRow) TableName() string { return "video_analysis" }
