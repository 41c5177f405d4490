package services

import (
	"errors"
	"math"
	"testing"

	"github.com/yungbote/videonotes-backend/internal/apperr"
	"github.com/yungbote/videonotes-backend/internal/types"
)

func TestNormalize_EmptyTrack(t *testing.T) {
	svc := NewTranscriptService(testLog(t))

	if _, err := svc.Normalize(nil); !errors.Is(err, apperr.ErrNoTranscriptAvailable) {
		t.Fatalf("nil track: expected ErrNoTranscriptAvailable, got %v", err)
	}
	track := &RawCaptionTrack{Cues: []RawCaptionCue{{Start: 1, End: 0.5, Text: "backwards"}, {Start: 2, End: 3, Text: "   "}}}
	if _, err := svc.Normalize(track); !errors.Is(err, apperr.ErrNoTranscriptAvailable) {
		t.Fatalf("only invalid cues: expected ErrNoTranscriptAvailable, got %v", err)
	}
}

func TestNormalize_MergesAdjacentCues(t *testing.T) {
	svc := NewTranscriptService(testLog(t))

	track := &RawCaptionTrack{
		Language: "en",
		Cues: []RawCaptionCue{
			{Start: 0, End: 2, Text: "welcome to the", Confidence: 0.9},
			{Start: 2.2, End: 4, Text: "course on graphs", Confidence: 0.88},
			// 5s gap: new segment.
			{Start: 9, End: 11, Text: "first topic", Confidence: 0.9},
		},
	}
	out, err := svc.Normalize(track)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(out.Segments) != 2 {
		t.Fatalf("expected 2 segments after merging, got %d", len(out.Segments))
	}
	if out.Segments[0].Text != "welcome to the course on graphs" {
		t.Fatalf("unexpected merged text %q", out.Segments[0].Text)
	}
	if out.Segments[0].EndTime != 4 {
		t.Fatalf("merged segment end = %v, want 4", out.Segments[0].EndTime)
	}
	if out.WordCount != 8 {
		t.Fatalf("word count = %d, want 8", out.WordCount)
	}
	if out.TotalDuration != 11 {
		t.Fatalf("total duration = %v, want 11", out.TotalDuration)
	}
}

func TestNormalize_NoMergeAcrossSpeakersOrConfidenceJump(t *testing.T) {
	svc := NewTranscriptService(testLog(t))

	track := &RawCaptionTrack{
		Cues: []RawCaptionCue{
			{Start: 0, End: 2, Text: "hello", Confidence: 0.95, Speaker: "a"},
			{Start: 2.1, End: 4, Text: "hi there", Confidence: 0.95, Speaker: "b"},
			{Start: 4.2, End: 6, Text: "mumble", Confidence: 0.4, Speaker: "b"},
		},
	}
	out, err := svc.Normalize(track)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(out.Segments) != 3 {
		t.Fatalf("expected 3 segments (speaker change + confidence jump), got %d", len(out.Segments))
	}
}

func TestNormalize_SortsAndClampsOverlaps(t *testing.T) {
	svc := NewTranscriptService(testLog(t))

	track := &RawCaptionTrack{
		Cues: []RawCaptionCue{
			{Start: 10, End: 14, Text: "second", Confidence: 0.9, Speaker: "a"},
			{Start: 0, End: 12, Text: "first overlaps second", Confidence: 0.5, Speaker: "b"},
		},
	}
	out, err := svc.Normalize(track)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	for i := 1; i < len(out.Segments); i++ {
		prev, cur := out.Segments[i-1], out.Segments[i]
		if cur.StartTime < prev.EndTime {
			t.Fatalf("segments overlap: [%v,%v] then [%v,%v]", prev.StartTime, prev.EndTime, cur.StartTime, cur.EndTime)
		}
	}
	if out.Segments[0].Text != "first overlaps second" {
		t.Fatalf("segments not sorted by start, first is %q", out.Segments[0].Text)
	}
}

func TestNormalize_DurationWeightedConfidence(t *testing.T) {
	svc := NewTranscriptService(testLog(t))

	track := &RawCaptionTrack{
		Cues: []RawCaptionCue{
			{Start: 0, End: 3, Text: "long part", Confidence: 0.9},
			{Start: 3.1, End: 4.1, Text: "short", Confidence: 0.8},
		},
	}
	out, err := svc.Normalize(track)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(out.Segments) != 1 {
		t.Fatalf("expected 1 merged segment, got %d", len(out.Segments))
	}
	want := (0.9*3 + 0.8*1) / 4
	if math.Abs(out.Segments[0].Confidence-want) > 1e-9 {
		t.Fatalf("confidence = %v, want %v", out.Segments[0].Confidence, want)
	}
}

func TestBackfillImportance(t *testing.T) {
	svc := NewTranscriptService(testLog(t))

	transcript := &types.FullTranscript{
		Segments: []types.TranscriptSegment{
			{Text: "today we study gradient descent"},
			{Text: "lunch break now"},
			{Text: "back to gradient descent again"},
		},
	}
	cm := &types.ConceptMap{
		Concepts: []types.Concept{
			{Name: "Gradient Descent", Timestamps: []float64{10, 200}},
			{Name: "Lunch", Timestamps: []float64{100}}, // single mention, not recurring
		},
	}
	svc.BackfillImportance(transcript, cm)

	if !transcript.Segments[0].IsImportant || !transcript.Segments[2].IsImportant {
		t.Fatalf("segments mentioning a recurring concept should be important")
	}
	if transcript.Segments[1].IsImportant {
		t.Fatalf("segment mentioning a one-off concept should stay unimportant")
	}
}
