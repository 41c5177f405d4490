package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/videonotes-backend/internal/logger"
	"github.com/yungbote/videonotes-backend/internal/types"
)

var ErrRenderedNoteNotFound = errors.New("rendered note not found")

type RenderedNoteRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, note *types.RenderedNote) error
	GetByVideoAndFormat(ctx context.Context, tx *gorm.DB, videoID, format string) (*types.RenderedNote, error)
	ListByVideo(ctx context.Context, tx *gorm.DB, videoID string) ([]*types.RenderedNote, error)
}

type renderedNoteRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRenderedNoteRepo(db *gorm.DB, baseLog *logger.Logger) RenderedNoteRepo {
	return &renderedNoteRepo{db: db, log: baseLog.With("repo", "RenderedNoteRepo")}
}

func (r *renderedNoteRepo) Upsert(ctx context.Context, tx *gorm.DB, note *types.RenderedNote) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if note == nil {
		return fmt.Errorf("note required")
	}
	if note.VideoID == "" || note.Format == "" {
		return fmt.Errorf("videoID and format required")
	}
	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}
	note.UpdatedAt = time.Now().UTC()

	return transaction.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "video_id"}, {Name: "format"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"brief", "standard", "comprehensive", "analysis_version", "updated_at",
		}),
	}).Create(note).Error
}

func (r *renderedNoteRepo) GetByVideoAndFormat(ctx context.Context, tx *gorm.DB, videoID, format string) (*types.RenderedNote, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var note types.RenderedNote
	err := transaction.WithContext(ctx).
		Where("video_id = ? AND format = ?", videoID, format).
		First(&note).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRenderedNoteNotFound
		}
		return nil, err
	}
	return &note, nil
}

func (r *renderedNoteRepo) ListByVideo(ctx context.Context, tx *gorm.DB, videoID string) ([]*types.RenderedNote, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var notes []*types.RenderedNote
	if err := transaction.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("format ASC").
		Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}
