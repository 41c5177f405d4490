package services

import (
	"testing"

	"github.com/yungbote/videonotes-backend/internal/types"
)

func TestSummarize_EmptyFrames(t *testing.T) {
	svc := NewVisualService(testLog(t))

	out := svc.Summarize(nil)
	if len(out.KeyFrames) != 0 {
		t.Fatalf("expected no key frames, got %d", len(out.KeyFrames))
	}
	if out.VisualComplexity != types.ComplexityLow {
		t.Fatalf("empty input should be low complexity, got %s", out.VisualComplexity)
	}
}

func TestSummarize_ClassifiesAndFlags(t *testing.T) {
	svc := NewVisualService(testLog(t))

	frames := []RawFrame{
		{Timestamp: 30, Description: "bar chart of accuracy per epoch", Elements: []string{"chart"}},
		{Timestamp: 10, Description: "title slide with bullet points", ExtractedText: "Intro to ML"},
		{Timestamp: 50, Description: "architecture diagram with arrows"},
		{Timestamp: 70, Description: "speaker at a desk"},
	}
	out := svc.Summarize(frames)

	if len(out.KeyFrames) != 4 {
		t.Fatalf("expected 4 key frames, got %d", len(out.KeyFrames))
	}
	// Sorted by timestamp.
	if out.KeyFrames[0].Timestamp != 10 || out.KeyFrames[3].Timestamp != 70 {
		t.Fatalf("key frames not sorted by timestamp: %v, %v", out.KeyFrames[0].Timestamp, out.KeyFrames[3].Timestamp)
	}
	if out.KeyFrames[0].Type != types.FrameSlide {
		t.Fatalf("slide frame classified as %s", out.KeyFrames[0].Type)
	}
	if out.KeyFrames[1].Type != types.FrameChart {
		t.Fatalf("chart frame classified as %s", out.KeyFrames[1].Type)
	}
	if out.KeyFrames[2].Type != types.FrameDiagram {
		t.Fatalf("diagram frame classified as %s", out.KeyFrames[2].Type)
	}
	if out.KeyFrames[3].Type != types.FrameScene {
		t.Fatalf("scene frame classified as %s", out.KeyFrames[3].Type)
	}

	if !out.HasSlides || !out.HasCharts || !out.HasDiagrams {
		t.Fatalf("flags = slides %v charts %v diagrams %v, want all true", out.HasSlides, out.HasCharts, out.HasDiagrams)
	}
	if out.ScreenTextRatio != 0.25 {
		t.Fatalf("screen text ratio = %v, want 0.25", out.ScreenTextRatio)
	}
}

func TestSummarize_ComplexityMonotone(t *testing.T) {
	svc := NewVisualService(testLog(t))

	plain := svc.Summarize([]RawFrame{
		{Timestamp: 1, Description: "speaker at a desk"},
		{Timestamp: 2, Description: "speaker at a desk"},
	})
	if plain.VisualComplexity != types.ComplexityLow {
		t.Fatalf("uniform scene frames should be low, got %s", plain.VisualComplexity)
	}

	busy := svc.Summarize([]RawFrame{
		{Timestamp: 1, Description: "slide", Elements: []string{"title", "bullets"}},
		{Timestamp: 2, Description: "bar chart", Elements: []string{"chart", "axis"}},
		{Timestamp: 3, Description: "flow diagram", Elements: []string{"node", "arrow"}},
		{Timestamp: 4, Description: "speaker on stage", Elements: []string{"person"}},
	})
	if busy.VisualComplexity != types.ComplexityHigh {
		t.Fatalf("diverse dense frames should be high, got %s", busy.VisualComplexity)
	}
}
