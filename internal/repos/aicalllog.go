package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/videonotes-backend/internal/logger"
	"github.com/yungbote/videonotes-backend/internal/types"
)

type AICallLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.AICallLog) error
	CountByPurposePrefix(ctx context.Context, tx *gorm.DB, videoID, purposePrefix string) (int64, error)
}

type aiCallLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAICallLogRepo(db *gorm.DB, baseLog *logger.Logger) AICallLogRepo {
	return &aiCallLogRepo{db: db, log: baseLog.With("repo", "AICallLogRepo")}
}

func (r *aiCallLogRepo) Create(ctx context.Context, tx *gorm.DB, row *types.AICallLog) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return transaction.WithContext(ctx).Create(row).Error
}

func (r *aiCallLogRepo) CountByPurposePrefix(ctx context.Context, tx *gorm.DB, videoID, purposePrefix string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	q := transaction.WithContext(ctx).Model(&types.AICallLog{})
	if videoID != "" {
		q = q.Where("video_id = ?", videoID)
	}
	if purposePrefix != "" {
		q = q.Where("purpose LIKE ?", purposePrefix+"%")
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
