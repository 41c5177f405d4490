package repos

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/videonotes-backend/internal/repos/testutil"
	"github.com/yungbote/videonotes-backend/internal/types"
)

func TestRenderedNoteRepo_UpsertOverwrites(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewRenderedNoteRepo(db, testutil.Logger(t))
	ctx := context.Background()

	note := &types.RenderedNote{
		VideoID:         "vid-n",
		Format:          "study-notes",
		Brief:           "b1",
		Standard:        "s1",
		Comprehensive:   "c1",
		AnalysisVersion: 1,
	}
	if err := repo.Upsert(ctx, tx, note); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	note2 := &types.RenderedNote{
		VideoID:         "vid-n",
		Format:          "study-notes",
		Brief:           "b2",
		Standard:        "s2",
		Comprehensive:   "c2",
		AnalysisVersion: 2,
	}
	if err := repo.Upsert(ctx, tx, note2); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}

	got, err := repo.GetByVideoAndFormat(ctx, tx, "vid-n", "study-notes")
	if err != nil {
		t.Fatalf("GetByVideoAndFormat: %v", err)
	}
	if got.Standard != "s2" || got.AnalysisVersion != 2 {
		t.Fatalf("upsert did not overwrite: standard %q version %d", got.Standard, got.AnalysisVersion)
	}

	notes, err := repo.ListByVideo(ctx, tx, "vid-n")
	if err != nil {
		t.Fatalf("ListByVideo: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("one (video, format) pair must stay one row, got %d", len(notes))
	}
}

func TestRenderedNoteRepo_NotFound(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewRenderedNoteRepo(db, testutil.Logger(t))

	if _, err := repo.GetByVideoAndFormat(context.Background(), tx, "vid-n", "no-such-format"); !errors.Is(err, ErrRenderedNoteNotFound) {
		t.Fatalf("expected ErrRenderedNoteNotFound, got %v", err)
	}
}
