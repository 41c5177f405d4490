package repos

import (
	"context"
	"testing"

	"github.com/yungbote/videonotes-backend/internal/repos/testutil"
	"github.com/yungbote/videonotes-backend/internal/types"
)

func TestAICallLogRepo_CountByPurposePrefix(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewAICallLogRepo(db, testutil.Logger(t))
	ctx := context.Background()

	rows := []*types.AICallLog{
		{Purpose: "render:study-notes", VideoID: "vid-l", Model: "m"},
		{Purpose: "render:flashcards", VideoID: "vid-l", Model: "m"},
		{Purpose: "chapters", VideoID: "vid-l", Model: "m"},
		{Purpose: "render:study-notes", VideoID: "other", Model: "m"},
	}
	for _, row := range rows {
		if err := repo.Create(ctx, tx, row); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	n, err := repo.CountByPurposePrefix(ctx, tx, "vid-l", "render:")
	if err != nil {
		t.Fatalf("CountByPurposePrefix: %v", err)
	}
	if n != 2 {
		t.Fatalf("render calls for vid-l = %d, want 2", n)
	}

	all, err := repo.CountByPurposePrefix(ctx, tx, "vid-l", "")
	if err != nil {
		t.Fatalf("CountByPurposePrefix all: %v", err)
	}
	if all != 3 {
		t.Fatalf("all calls for vid-l = %d, want 3", all)
	}
}
