package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/videonotes-backend/internal/apperr"
	"github.com/yungbote/videonotes-backend/internal/logger"
	"github.com/yungbote/videonotes-backend/internal/repos"
	"github.com/yungbote/videonotes-backend/internal/types"
)

// PipelineService runs the full ingest-to-notes flow for one video: fetch raw
// signals, normalize, structure, extract concepts, render every requested
// format at all verbosity tiers, and persist the artifact plus notes.
type PipelineService interface {
	Process(ctx context.Context, videoID string, userID *uuid.UUID, formats []string) (*types.ProcessingResponse, error)
}

type pipelineService struct {
	log *logger.Logger

	captions CaptionProvider
	frames   FrameProvider

	transcripts TranscriptService
	visual      VisualService
	structure   StructureService
	concepts    ConceptService
	renderer    RendererService

	analyses repos.AnalysisRepo
	notes    repos.RenderedNoteRepo

	primaryFormat string
}

func NewPipelineService(
	log *logger.Logger,
	captions CaptionProvider,
	frames FrameProvider,
	transcripts TranscriptService,
	visual VisualService,
	structure StructureService,
	concepts ConceptService,
	renderer RendererService,
	analyses repos.AnalysisRepo,
	notes repos.RenderedNoteRepo,
) PipelineService {
	return &pipelineService{
		log:           log.With("service", "PipelineService"),
		captions:      captions,
		frames:        frames,
		transcripts:   transcripts,
		visual:        visual,
		structure:     structure,
		concepts:      concepts,
		renderer:      renderer,
		analyses:      analyses,
		notes:         notes,
		primaryFormat: "study-notes",
	}
}

func (s *pipelineService) Process(ctx context.Context, videoID string, userID *uuid.UUID, formats []string) (*types.ProcessingResponse, error) {
	if strings.TrimSpace(videoID) == "" {
		return nil, fmt.Errorf("videoID required")
	}
	started := time.Now()

	track, rawFrames, degraded, err := s.fetchSignals(ctx, videoID)
	if err != nil {
		return nil, err
	}

	var transcript *types.FullTranscript
	if !degraded {
		transcript, err = s.transcripts.Normalize(track)
		if err != nil {
			return nil, fmt.Errorf("normalize transcript: %w", err)
		}
		if transcript.Empty() {
			s.log.Warn("Caption track normalized to nothing, falling back to visual-only", "video_id", videoID)
			degraded = true
			transcript = nil
		}
	}
	if degraded && len(rawFrames) == 0 {
		return nil, fmt.Errorf("video %s has neither transcript nor visual signal", videoID)
	}

	visual := s.visual.Summarize(rawFrames)

	structure, structWarnings, err := s.structure.BuildStructure(ctx, videoID, transcript, visual)
	if err != nil {
		return nil, fmt.Errorf("build structure: %w", err)
	}

	extraction, err := s.concepts.ExtractConcepts(ctx, videoID, transcript, structure, visual)
	if err != nil {
		return nil, fmt.Errorf("extract concepts: %w", err)
	}
	warnings := append(structWarnings, extraction.Warnings...)

	if transcript != nil {
		s.transcripts.BackfillImportance(transcript, &extraction.Map)
	}

	analysis := &types.EnhancedVideoAnalysis{
		VideoID:            videoID,
		Title:              s.titleFor(track, videoID),
		Transcript:         transcript,
		Visual:             *visual,
		Structure:          *structure,
		ConceptMap:         extraction.Map,
		ContentKind:        classifyContentKind(transcript, visual),
		OverallDifficulty:  overallDifficulty(&extraction.Map),
		SuggestedQuestions: extraction.SuggestedQuestions,
		KeyTimestamps:      extraction.KeyTimestamps,
		DegradedMode:       degraded,
		CreatedAt:          time.Now().UTC(),
	}

	if len(formats) == 0 {
		formats = []string{s.primaryFormat}
	}
	outputs, failures := s.renderer.RenderAll(ctx, analysis, formats)
	if len(outputs) == 0 {
		return nil, apperr.NewBackendError(apperr.BackendUnavailable, "render",
			fmt.Errorf("all %d requested formats failed", len(formats)))
	}
	analysis.AllTemplateOutputs = outputs

	if err := s.persist(ctx, videoID, userID, analysis, outputs); err != nil {
		return nil, err
	}

	s.log.Info("Pipeline complete",
		"video_id", videoID,
		"version", analysis.Version,
		"degraded", degraded,
		"chapters", len(structure.Chapters),
		"concepts", len(extraction.Map.Concepts),
		"formats_rendered", len(outputs),
		"elapsed_ms", time.Since(started).Milliseconds())

	return s.buildResponse(analysis, formats, outputs, failures, warnings), nil
}

// fetchSignals pulls captions and frames concurrently. A missing caption
// track is not fatal; it flips the run into degraded (visual-only) mode.
func (s *pipelineService) fetchSignals(ctx context.Context, videoID string) (*RawCaptionTrack, []RawFrame, bool, error) {
	var (
		track     *RawCaptionTrack
		rawFrames []RawFrame
		degraded  bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.captions.FetchCaptions(gctx, videoID)
		if err != nil {
			if errors.Is(err, apperr.ErrNoTranscriptAvailable) {
				s.log.Warn("No transcript available, entering visual-only mode", "video_id", videoID)
				degraded = true
				return nil
			}
			return fmt.Errorf("fetch captions: %w", err)
		}
		track = t
		return nil
	})
	g.Go(func() error {
		f, err := s.frames.SampleFrames(gctx, videoID)
		if err != nil {
			// Frames are supplementary when a transcript exists; keep going.
			s.log.Warn("Frame sampling failed, continuing without visual signal", "video_id", videoID, "error", err)
			return nil
		}
		rawFrames = f
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, false, err
	}
	return track, rawFrames, degraded, nil
}

func (s *pipelineService) persist(ctx context.Context, videoID string, userID *uuid.UUID, analysis *types.EnhancedVideoAnalysis, outputs map[string]types.TemplateOutput) error {
	if s.analyses == nil {
		return nil
	}
	row, err := s.analyses.SaveAnalysis(ctx, nil, videoID, userID, analysis)
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	analysis.Version = row.Version

	if s.notes == nil {
		return nil
	}
	for format, out := range outputs {
		note := &types.RenderedNote{
			VideoID:         videoID,
			UserID:          userID,
			Format:          format,
			Brief:           out.VerbosityLevels.Brief,
			Standard:        out.VerbosityLevels.Standard,
			Comprehensive:   out.VerbosityLevels.Comprehensive,
			AnalysisVersion: row.Version,
		}
		if err := s.notes.Upsert(ctx, nil, note); err != nil {
			return fmt.Errorf("store rendered note %s: %w", format, err)
		}
	}
	return nil
}

func (s *pipelineService) buildResponse(analysis *types.EnhancedVideoAnalysis, requested []string, outputs map[string]types.TemplateOutput, failures []FormatFailure, warnings []string) *types.ProcessingResponse {
	primary := s.primaryFormat
	if _, ok := outputs[primary]; !ok {
		for _, f := range requested {
			if _, ok := outputs[f]; ok {
				primary = f
				break
			}
		}
	}
	primaryOut := outputs[primary]

	failed := make([]string, 0, len(failures))
	for _, f := range failures {
		failed = append(failed, f.Format)
	}

	confidence := 0.0
	if analysis.Transcript != nil {
		confidence = analysis.Transcript.AverageConfidence
	}

	return &types.ProcessingResponse{
		Title:              analysis.Title,
		Content:            primaryOut.Content,
		Template:           primary,
		VerbosityVersions:  primaryOut.VerbosityLevels,
		AllTemplateOutputs: outputs,
		FailedFormats:      failed,
		ContentAnalysis: &types.ContentAnalysisSummary{
			ChapterCount:    len(analysis.Structure.Chapters),
			ConceptCount:    len(analysis.ConceptMap.Concepts),
			FlowType:        analysis.Structure.FlowType,
			ContentKind:     analysis.ContentKind,
			VisualComplex:   analysis.Visual.VisualComplexity,
			ScreenTextRatio: analysis.Visual.ScreenTextRatio,
			DegradedMode:    analysis.DegradedMode,
		},
		Quality: &types.QualitySummary{
			TranscriptConfidence: confidence,
			FormatsRequested:     len(requested),
			FormatsRendered:      len(outputs),
			StructuralWarnings:   len(warnings),
		},
	}
}

func (s *pipelineService) titleFor(track *RawCaptionTrack, videoID string) string {
	if track != nil && strings.TrimSpace(track.VideoFacts.Title) != "" {
		return strings.TrimSpace(track.VideoFacts.Title)
	}
	return "Video " + videoID
}

var tutorialMarkers = []string{"step ", "let's build", "install", "run the", "click", "type the"}

func classifyContentKind(transcript *types.FullTranscript, visual *types.VisualAnalysis) string {
	text := ""
	if transcript != nil {
		text = strings.ToLower(transcript.Text())
	}
	tutorialHits := 0
	for _, m := range tutorialMarkers {
		if strings.Contains(text, m) {
			tutorialHits++
		}
	}
	switch {
	case tutorialHits >= 2:
		return "tutorial"
	case visual != nil && visual.HasSlides:
		return "lecture"
	case visual != nil && (visual.HasCharts || visual.HasDiagrams):
		return "talk"
	case transcript != nil && !transcript.Empty():
		return "talk"
	default:
		return "other"
	}
}

func overallDifficulty(m *types.ConceptMap) types.ConceptDifficulty {
	if m == nil || len(m.Concepts) == 0 {
		return types.DifficultyBasic
	}
	advanced, intermediate := 0, 0
	for _, c := range m.Concepts {
		switch c.Difficulty {
		case types.DifficultyAdvanced:
			advanced++
		case types.DifficultyIntermediate:
			intermediate++
		}
	}
	third := len(m.Concepts) / 3
	switch {
	case advanced > third:
		return types.DifficultyAdvanced
	case advanced+intermediate > third:
		return types.DifficultyIntermediate
	default:
		return types.DifficultyBasic
	}
}
