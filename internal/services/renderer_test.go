package services

import (
	"context"
	"strings"
	"testing"

	"github.com/yungbote/videonotes-backend/internal/apperr"
	"github.com/yungbote/videonotes-backend/internal/types"
)

func renderAnalysis() *types.EnhancedVideoAnalysis {
	return &types.EnhancedVideoAnalysis{
		VideoID: "vid-r",
		Title:   "Graphs 101",
		Transcript: &types.FullTranscript{
			TotalDuration: 300,
			Segments: []types.TranscriptSegment{
				{StartTime: 0, EndTime: 300, Text: "a long talk about graphs", Confidence: 0.9},
			},
		},
		Structure: types.ContentStructure{Chapters: []types.ContentChapter{
			{Title: "Intro", StartTime: 0, EndTime: 300, Summary: "All of it."},
		}},
		ConceptMap: types.ConceptMap{Concepts: []types.Concept{
			{Name: "Graph", Definition: "Nodes and edges.", Timestamps: []float64{12}},
		}},
	}
}

const standardNote = "# Graphs\n\nGraphs model relationships. They appear everywhere in computing.\n\n## Traversal\n\nBFS explores level by level. DFS goes deep first."

func TestRenderAll_OneCallPerFormatAndLocalTiers(t *testing.T) {
	ai := newFakeAI()
	ai.responses["render:"] = standardNote
	svc := NewRendererService(testLog(t), ai, NewTemplateRegistry(), 100, 4)

	formats := []string{"basic-summary", "study-notes", "flashcards"}
	outputs, failures := svc.RenderAll(context.Background(), renderAnalysis(), formats)

	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(outputs) != 3 {
		t.Fatalf("outputs = %d, want 3", len(outputs))
	}
	if got := ai.totalCalls(); got != 3 {
		t.Fatalf("backend calls = %d, want exactly one per format", got)
	}

	for format, out := range outputs {
		v := out.VerbosityLevels
		if v.Standard != standardNote {
			t.Fatalf("%s: standard tier must be the backend output", format)
		}
		if len(v.Brief) >= len(v.Standard) {
			t.Fatalf("%s: brief (%d chars) not shorter than standard (%d)", format, len(v.Brief), len(v.Standard))
		}
		if !strings.HasPrefix(v.Comprehensive, v.Standard) {
			t.Fatalf("%s: comprehensive must extend standard", format)
		}
		if !strings.Contains(v.Comprehensive, "Concept deep dive") {
			t.Fatalf("%s: comprehensive missing concept elaboration", format)
		}
	}
}

func TestRenderAll_FailureIsolation(t *testing.T) {
	ai := newFakeAI()
	ai.responses["render:"] = standardNote
	ai.errs["render:flashcards"] = apperr.NewBackendError(apperr.BackendTimeout, "render:flashcards", context.DeadlineExceeded)
	svc := NewRendererService(testLog(t), ai, NewTemplateRegistry(), 100, 2)

	outputs, failures := svc.RenderAll(context.Background(), renderAnalysis(), []string{"basic-summary", "flashcards", "key-concepts"})

	if len(outputs) != 2 {
		t.Fatalf("outputs = %d, want the 2 surviving formats", len(outputs))
	}
	if _, ok := outputs["flashcards"]; ok {
		t.Fatalf("failed format must not appear in outputs")
	}
	if len(failures) != 1 || failures[0].Format != "flashcards" {
		t.Fatalf("failures = %v, want exactly flashcards", failures)
	}
}

func TestRenderAll_UnknownFormat(t *testing.T) {
	ai := newFakeAI()
	ai.responses["render:"] = standardNote
	svc := NewRendererService(testLog(t), ai, NewTemplateRegistry(), 100, 2)

	outputs, failures := svc.RenderAll(context.Background(), renderAnalysis(), []string{"basic-summary", "no-such-format"})

	if len(outputs) != 1 {
		t.Fatalf("outputs = %d, want 1", len(outputs))
	}
	if len(failures) != 1 || failures[0].Format != "no-such-format" || failures[0].Reason != "unknown format" {
		t.Fatalf("failures = %v", failures)
	}
}

func TestDeriveBrief_NoHeadings(t *testing.T) {
	text := "One. Two. Three. Four. Five. Six. Seven. Eight. Nine. Ten."
	brief := DeriveBrief(text)
	if brief != "One. Two. Three." {
		t.Fatalf("brief = %q, want first 30%% of sentences", brief)
	}
}

func TestVerbosityVersions_Get(t *testing.T) {
	v := types.VerbosityVersions{Brief: "b", Standard: "s", Comprehensive: "c"}
	if v.Get(types.VerbosityBrief) != "b" || v.Get(types.VerbosityComprehensive) != "c" {
		t.Fatalf("tier lookup broken")
	}
	if v.Get("") != "s" {
		t.Fatalf("unknown tier must default to standard")
	}
}
