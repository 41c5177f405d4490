package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/videonotes-backend/internal/logger"
	"github.com/yungbote/videonotes-backend/internal/types"
)

var ErrAnalysisNotFound = errors.New("analysis not found")

type AnalysisRepo interface {
	// SaveAnalysis writes the whole artifact atomically as a new version.
	// The artifact is never mutated in place; re-processing appends version+1.
	SaveAnalysis(ctx context.Context, tx *gorm.DB, videoID string, userID *uuid.UUID, analysis *types.EnhancedVideoAnalysis) (*types.VideoAnalysisRow, error)

	// GetLatestByVideoID returns the newest version's row and decoded artifact.
	GetLatestByVideoID(ctx context.Context, tx *gorm.DB, videoID string) (*types.VideoAnalysisRow, *types.EnhancedVideoAnalysis, error)
}

type analysisRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalysisRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisRepo {
	return &analysisRepo{db: db, log: baseLog.With("repo", "AnalysisRepo")}
}

func (r *analysisRepo) SaveAnalysis(ctx context.Context, tx *gorm.DB, videoID string, userID *uuid.UUID, analysis *types.EnhancedVideoAnalysis) (*types.VideoAnalysisRow, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if videoID == "" {
		return nil, fmt.Errorf("videoID required")
	}
	if analysis == nil {
		return nil, fmt.Errorf("analysis required")
	}

	var row *types.VideoAnalysisRow
	err := transaction.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		var maxVersion int
		if err := inner.Model(&types.VideoAnalysisRow{}).
			Where("video_id = ?", videoID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error; err != nil {
			return err
		}

		analysis.VideoID = videoID
		analysis.Version = maxVersion + 1

		blob, err := json.Marshal(analysis)
		if err != nil {
			return fmt.Errorf("marshal artifact: %w", err)
		}

		row = &types.VideoAnalysisRow{
			ID:           uuid.New(),
			VideoID:      videoID,
			UserID:       userID,
			Version:      analysis.Version,
			Title:        analysis.Title,
			DegradedMode: analysis.DegradedMode,
			Artifact:     blob,
		}
		return inner.Create(row).Error
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *analysisRepo) GetLatestByVideoID(ctx context.Context, tx *gorm.DB, videoID string) (*types.VideoAnalysisRow, *types.EnhancedVideoAnalysis, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.VideoAnalysisRow
	err := transaction.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("version DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrAnalysisNotFound
		}
		return nil, nil, err
	}

	var analysis types.EnhancedVideoAnalysis
	if err := json.Unmarshal(row.Artifact, &analysis); err != nil {
		return nil, nil, fmt.Errorf("unmarshal artifact: %w", err)
	}
	return &row, &analysis, nil
}
