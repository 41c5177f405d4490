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

type ConversationRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ChatConversation, error)
	GetOrCreate(ctx context.Context, tx *gorm.DB, videoID string, userID *uuid.UUID) (*types.ChatConversation, error)

	// AppendTurn claims the conversation's next sequence number under a row
	// lock, so concurrent appends for the same conversation serialize.
	AppendTurn(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID, question string) (*types.ChatTurnRow, error)

	UpdateTurn(ctx context.Context, tx *gorm.DB, turnID uuid.UUID, fields map[string]interface{}) error

	// LastTurns returns up to limit most recent turns, oldest first.
	LastTurns(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID, limit int) ([]*types.ChatTurnRow, error)
}

type conversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
	return &conversationRepo{db: db, log: baseLog.With("repo", "ConversationRepo")}
}

func (r *conversationRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ChatConversation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var conv types.ChatConversation
	if err := transaction.WithContext(ctx).Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, videoID string, userID *uuid.UUID) (*types.ChatConversation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if videoID == "" {
		return nil, fmt.Errorf("videoID required")
	}

	var conv types.ChatConversation
	q := transaction.WithContext(ctx).Where("video_id = ?", videoID)
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	} else {
		q = q.Where("user_id IS NULL")
	}
	err := q.First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	conv = types.ChatConversation{
		ID:            uuid.New(),
		VideoID:       videoID,
		UserID:        userID,
		NextSeq:       0,
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := transaction.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) AppendTurn(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID, question string) (*types.ChatTurnRow, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if conversationID == uuid.Nil {
		return nil, fmt.Errorf("conversationID required")
	}

	var turn *types.ChatTurnRow
	err := transaction.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		var conv types.ChatConversation
		if err := inner.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", conversationID).
			First(&conv).Error; err != nil {
			return err
		}

		seq := conv.NextSeq
		now := time.Now().UTC()
		turn = &types.ChatTurnRow{
			ID:             uuid.New(),
			ConversationID: conversationID,
			Seq:            seq,
			Question:       question,
			Status:         types.TurnStatusAwaitingAnswer,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := inner.Create(turn).Error; err != nil {
			return err
		}

		return inner.Model(&types.ChatConversation{}).
			Where("id = ?", conversationID).
			Updates(map[string]interface{}{
				"next_seq":        seq + 1,
				"last_message_at": now,
				"updated_at":      now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return turn, nil
}

func (r *conversationRepo) UpdateTurn(ctx context.Context, tx *gorm.DB, turnID uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	return transaction.WithContext(ctx).
		Model(&types.ChatTurnRow{}).
		Where("id = ?", turnID).
		Updates(fields).Error
}

func (r *conversationRepo) LastTurns(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID, limit int) ([]*types.ChatTurnRow, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 5
	}
	var turns []*types.ChatTurnRow
	if err := transaction.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("seq DESC").
		Limit(limit).
		Find(&turns).Error; err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
