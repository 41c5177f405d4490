package services

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/videonotes-backend/internal/apperr"
	"github.com/yungbote/videonotes-backend/internal/types"
)

type fakeCaptions struct {
	track *RawCaptionTrack
	err   error
}

func (f *fakeCaptions) FetchCaptions(context.Context, string) (*RawCaptionTrack, error) {
	return f.track, f.err
}

type fakeFrames struct {
	frames []RawFrame
	err    error
}

func (f *fakeFrames) SampleFrames(context.Context, string) ([]RawFrame, error) {
	return f.frames, f.err
}

func pipelineFixture(t *testing.T, captions CaptionProvider, frames FrameProvider) (PipelineService, *fakeAI) {
	t.Helper()
	log := testLog(t)
	ai := newFakeAI()
	ai.responses["chapters"] = `{"chapters":[{"title":"Main part","summary":"All of it.","importance":"high"}],"flow_type":"linear"}`
	ai.responses["concepts"] = `[{"name":"Caching","definition":"Keeping hot data close.","difficulty":"basic"}]`
	ai.responses["relationships"] = `[]`
	ai.responses["render:"] = "# Notes\n\nCaching keeps hot data close. It trades memory for speed."

	svc := NewPipelineService(
		log,
		captions,
		frames,
		NewTranscriptService(log),
		NewVisualService(log),
		NewStructureService(log, ai),
		NewConceptService(log, ai),
		NewRendererService(log, ai, NewTemplateRegistry(), 100, 4),
		nil,
		nil,
	)
	return svc, ai
}

func captionedTrack() *RawCaptionTrack {
	return &RawCaptionTrack{
		Language:   "en",
		VideoFacts: VideoFacts{Title: "Caching Explained", DurationSeconds: 120},
		Cues: []RawCaptionCue{
			{Start: 0, End: 40, Text: "caching keeps hot data close to the consumer", Confidence: 0.9},
			{Start: 45, End: 80, Text: "caching eviction policies decide what to drop", Confidence: 0.9},
			{Start: 85, End: 120, Text: "caching wins when reads dominate writes", Confidence: 0.9},
		},
	}
}

func TestProcess_FullRun(t *testing.T) {
	svc, ai := pipelineFixture(t, &fakeCaptions{track: captionedTrack()}, &fakeFrames{})

	resp, err := svc.Process(context.Background(), "vid-p", nil, []string{"study-notes", "basic-summary"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if resp.Title != "Caching Explained" {
		t.Fatalf("title = %q", resp.Title)
	}
	if resp.Template != "study-notes" {
		t.Fatalf("primary template = %q, want study-notes", resp.Template)
	}
	if len(resp.AllTemplateOutputs) != 2 {
		t.Fatalf("outputs = %d, want 2", len(resp.AllTemplateOutputs))
	}
	if len(resp.FailedFormats) != 0 {
		t.Fatalf("unexpected failed formats: %v", resp.FailedFormats)
	}
	if resp.ContentAnalysis == nil || resp.ContentAnalysis.DegradedMode {
		t.Fatalf("run with a transcript must not be degraded")
	}
	if resp.Quality == nil || resp.Quality.FormatsRendered != 2 {
		t.Fatalf("quality summary wrong: %+v", resp.Quality)
	}

	// Structure + concepts + relationships + one render per format.
	if got := ai.totalCalls(); got != 5 {
		t.Fatalf("backend calls = %d, want 5", got)
	}

	// Every tier is materialized; reading them triggers no further calls.
	for format, out := range resp.AllTemplateOutputs {
		for _, tier := range []types.VerbosityTier{types.VerbosityBrief, types.VerbosityStandard, types.VerbosityComprehensive} {
			if out.VerbosityLevels.Get(tier) == "" {
				t.Fatalf("%s: empty %s tier", format, tier)
			}
		}
	}
	if got := ai.totalCalls(); got != 5 {
		t.Fatalf("reading verbosity tiers must not call the backend (calls now %d)", got)
	}
}

func TestProcess_PartialRenderFailure(t *testing.T) {
	svc, ai := pipelineFixture(t, &fakeCaptions{track: captionedTrack()}, &fakeFrames{})
	ai.errs["render:study-notes"] = apperr.NewBackendError(apperr.BackendUnavailable, "render:study-notes", errors.New("scripted outage"))

	resp, err := svc.Process(context.Background(), "vid-f", nil, []string{"basic-summary", "study-notes"})
	if err != nil {
		t.Fatalf("one failed format must not fail the run: %v", err)
	}
	if len(resp.AllTemplateOutputs) != 1 {
		t.Fatalf("outputs = %d, want 1", len(resp.AllTemplateOutputs))
	}
	if _, ok := resp.AllTemplateOutputs["basic-summary"]; !ok {
		t.Fatalf("basic-summary should have rendered")
	}
	if len(resp.FailedFormats) != 1 || resp.FailedFormats[0] != "study-notes" {
		t.Fatalf("failed formats = %v, want [study-notes]", resp.FailedFormats)
	}
	if resp.Template != "basic-summary" {
		t.Fatalf("primary must fall back to a rendered format, got %q", resp.Template)
	}
	if resp.Content == "" {
		t.Fatalf("primary content missing")
	}
	if got := ai.callCount("render:"); got != 2 {
		t.Fatalf("render attempts = %d, want 2", got)
	}
}

func TestProcess_NoTranscriptFallsBackToVisual(t *testing.T) {
	frames := []RawFrame{
		{Timestamp: 10, Description: "title slide", ExtractedText: "Caching Explained"},
		{Timestamp: 60, Description: "architecture diagram with cache layers"},
		{Timestamp: 110, Description: "bar chart of hit rates"},
	}
	svc, _ := pipelineFixture(t, &fakeCaptions{err: apperr.ErrNoTranscriptAvailable}, &fakeFrames{frames: frames})

	resp, err := svc.Process(context.Background(), "vid-d", nil, []string{"basic-summary"})
	if err != nil {
		t.Fatalf("visual-only fallback failed: %v", err)
	}
	if resp.ContentAnalysis == nil || !resp.ContentAnalysis.DegradedMode {
		t.Fatalf("missing transcript must flag degraded mode")
	}
	if len(resp.AllTemplateOutputs) != 1 {
		t.Fatalf("degraded run still renders requested formats, got %d", len(resp.AllTemplateOutputs))
	}
	if resp.Quality.TranscriptConfidence != 0 {
		t.Fatalf("degraded run has no transcript confidence, got %v", resp.Quality.TranscriptConfidence)
	}
	if resp.ContentAnalysis.ConceptCount == 0 {
		t.Fatalf("degraded run must still build a concept map")
	}
}

func TestProcess_NoSignalsAtAll(t *testing.T) {
	svc, _ := pipelineFixture(t, &fakeCaptions{err: apperr.ErrNoTranscriptAvailable}, &fakeFrames{})
	if _, err := svc.Process(context.Background(), "vid-x", nil, nil); err == nil {
		t.Fatalf("no transcript and no frames must fail")
	}
}

func TestProcess_CaptionFetchHardError(t *testing.T) {
	svc, _ := pipelineFixture(t, &fakeCaptions{err: context.DeadlineExceeded}, &fakeFrames{})
	if _, err := svc.Process(context.Background(), "vid-e", nil, nil); err == nil {
		t.Fatalf("non-caption errors must propagate")
	}
}
