package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/yungbote/videonotes-backend/internal/apperr"
	"github.com/yungbote/videonotes-backend/internal/logger"
	"github.com/yungbote/videonotes-backend/internal/types"
)

// StructureService segments the timeline into chapters and asks the backend
// once for titles/summaries over the candidate boundary set.
type StructureService interface {
	BuildStructure(ctx context.Context, videoID string, transcript *types.FullTranscript, visual *types.VisualAnalysis) (*types.ContentStructure, []string, error)
}

type structureService struct {
	log *logger.Logger
	ai  AIClient

	pauseThresholdSec    float64
	mergeWindowSec       float64
	minChapterSec        float64
	coverageToleranceSec float64
	maxChapters          int
}

func NewStructureService(log *logger.Logger, ai AIClient) StructureService {
	return &structureService{
		log:                  log.With("service", "StructureService"),
		ai:                   ai,
		pauseThresholdSec:    2.0,
		mergeWindowSec:       5.0,
		minChapterSec:        20.0,
		coverageToleranceSec: 2.0,
		maxChapters:          12,
	}
}

var verbalMarkers = []string{
	"next,", "next ", "now let's", "now lets", "moving on", "let's move", "let's talk about",
	"in summary", "to summarize", "to recap", "in conclusion", "finally", "first,", "second,",
	"third,", "another thing", "the next topic", "so now", "okay so", "alright so",
}

type boundaryCandidate struct {
	at     float64
	visual bool
}

func (s *structureService) BuildStructure(ctx context.Context, videoID string, transcript *types.FullTranscript, visual *types.VisualAnalysis) (*types.ContentStructure, []string, error) {
	var warnings []string

	duration := totalDuration(transcript, visual)
	if duration <= 0 {
		return nil, nil, fmt.Errorf("cannot structure a zero-duration video")
	}

	boundaries := s.detectBoundaries(transcript, visual)
	merged := s.mergeBoundaries(boundaries)
	chapters := s.rangesFrom(merged, duration)

	structure := &types.ContentStructure{
		Chapters:         chapters,
		FlowType:         types.FlowLinear,
		TransitionPoints: transitionPoints(chapters),
	}

	parsed, err := s.describeChapters(ctx, videoID, transcript, visual, chapters)
	if err != nil {
		// Backend failure or malformed output: the structure survives with
		// deterministic titles and first-sentence summaries.
		warnings = append(warnings, fmt.Sprintf("chapter description fell back to deterministic text: %v", err))
		s.fillFallbackDescriptions(transcript, visual, structure)
	} else {
		s.applyParsed(parsed, structure)
	}

	s.enforceCoverage(structure, duration)
	return structure, warnings, nil
}

func (s *structureService) detectBoundaries(transcript *types.FullTranscript, visual *types.VisualAnalysis) []boundaryCandidate {
	var out []boundaryCandidate

	if transcript != nil {
		for i, seg := range transcript.Segments {
			if i > 0 {
				gap := seg.StartTime - transcript.Segments[i-1].EndTime
				if gap >= s.pauseThresholdSec {
					out = append(out, boundaryCandidate{at: seg.StartTime})
				}
			}
			lower := strings.ToLower(seg.Text)
			if len(lower) > 48 {
				lower = lower[:48]
			}
			for _, marker := range verbalMarkers {
				if strings.HasPrefix(lower, marker) || strings.Contains(lower, " "+marker) {
					out = append(out, boundaryCandidate{at: seg.StartTime})
					break
				}
			}
		}
	}

	if visual != nil {
		for i := 1; i < len(visual.KeyFrames); i++ {
			if visual.KeyFrames[i].Type != visual.KeyFrames[i-1].Type {
				out = append(out, boundaryCandidate{at: visual.KeyFrames[i].Timestamp, visual: true})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].at < out[j].at })
	return out
}

// mergeBoundaries collapses candidates inside the merge window; the one
// coinciding with a visual frame-type change wins the tie-break.
func (s *structureService) mergeBoundaries(candidates []boundaryCandidate) []float64 {
	var out []float64
	i := 0
	for i < len(candidates) {
		j := i
		chosen := candidates[i]
		for j+1 < len(candidates) && candidates[j+1].at-candidates[i].at <= s.mergeWindowSec {
			j++
			if candidates[j].visual && !chosen.visual {
				chosen = candidates[j]
			}
		}
		out = append(out, chosen.at)
		i = j + 1
	}
	return out
}

func (s *structureService) rangesFrom(boundaries []float64, duration float64) []types.ContentChapter {
	cuts := []float64{0}
	for _, b := range boundaries {
		last := cuts[len(cuts)-1]
		if b-last < s.minChapterSec || duration-b < s.minChapterSec {
			continue
		}
		if len(cuts) >= s.maxChapters {
			break
		}
		cuts = append(cuts, b)
	}

	chapters := make([]types.ContentChapter, 0, len(cuts))
	for i, start := range cuts {
		end := duration
		if i+1 < len(cuts) {
			end = cuts[i+1]
		}
		chapters = append(chapters, types.ContentChapter{
			Title:      fmt.Sprintf("Chapter %d", i+1),
			StartTime:  start,
			EndTime:    end,
			Importance: types.ImportanceMedium,
		})
	}
	return chapters
}

type parsedChapter struct {
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	KeyPoints  []string `json:"key_points"`
	Importance string   `json:"importance"`
}

// parsedChapterSet is the typed variant of the backend's chapter output.
// Untyped text never propagates past parseChapterSet.
type parsedChapterSet struct {
	Chapters        []parsedChapter `json:"chapters"`
	MainTopics      []string        `json:"main_topics"`
	FlowType        string          `json:"flow_type"`
	HasIntroduction bool            `json:"has_introduction"`
	HasConclusion   bool            `json:"has_conclusion"`
}

func (s *structureService) describeChapters(ctx context.Context, videoID string, transcript *types.FullTranscript, visual *types.VisualAnalysis, chapters []types.ContentChapter) (*parsedChapterSet, error) {
	if s.ai == nil {
		return nil, fmt.Errorf("no backend configured")
	}

	var sb strings.Builder
	sb.WriteString("You are given excerpts of a video, one per candidate chapter. ")
	sb.WriteString("Return ONLY JSON with this shape:\n")
	sb.WriteString(`{"chapters":[{"title":"","summary":"","key_points":[""],"importance":"low|medium|high"}],"main_topics":[""],"flow_type":"linear|branching|cyclical","has_introduction":true,"has_conclusion":true}`)
	sb.WriteString("\nThe chapters array must have exactly ")
	sb.WriteString(fmt.Sprintf("%d entries, in order.\n\n", len(chapters)))
	for i, ch := range chapters {
		sb.WriteString(fmt.Sprintf("Chapter %d [%s - %s]:\n", i+1, formatTimestamp(ch.StartTime), formatTimestamp(ch.EndTime)))
		sb.WriteString(excerptFor(transcript, visual, ch.StartTime, ch.EndTime, 400))
		sb.WriteString("\n\n")
	}

	completion, err := s.ai.Chat(ctx, []AIMessage{
		{Role: "system", Content: "You segment educational videos into titled chapters. Respond with JSON only."},
		{Role: "user", Content: sb.String()},
	}, &AIOptions{Purpose: "chapters", VideoID: videoID, Temperature: 0.2})
	if err != nil {
		return nil, err
	}

	parsed, err := parseChapterSet(completion.Content)
	if err != nil {
		s.log.Warn("Malformed chapter output from backend", "video_id", videoID, "error", err, "raw", truncate(completion.Content, 2000))
		return nil, apperr.NewBackendError(apperr.BackendMalformedOutput, "chapters", err)
	}
	return parsed, nil
}

func parseChapterSet(raw string) (*parsedChapterSet, error) {
	block, ok := extractJSONBlock(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON object in output")
	}
	var parsed parsedChapterSet
	if err := json.Unmarshal([]byte(block), &parsed); err != nil {
		return nil, fmt.Errorf("decode chapter set: %w", err)
	}
	if len(parsed.Chapters) == 0 {
		return nil, fmt.Errorf("chapter set has no chapters")
	}
	return &parsed, nil
}

func (s *structureService) applyParsed(parsed *parsedChapterSet, structure *types.ContentStructure) {
	for i := range structure.Chapters {
		if i >= len(parsed.Chapters) {
			break
		}
		p := parsed.Chapters[i]
		if strings.TrimSpace(p.Title) != "" {
			structure.Chapters[i].Title = strings.TrimSpace(p.Title)
		}
		structure.Chapters[i].Summary = strings.TrimSpace(p.Summary)
		structure.Chapters[i].KeyPoints = p.KeyPoints
		switch types.ImportanceLevel(strings.ToLower(p.Importance)) {
		case types.ImportanceLow, types.ImportanceMedium, types.ImportanceHigh:
			structure.Chapters[i].Importance = types.ImportanceLevel(strings.ToLower(p.Importance))
		}
	}
	structure.MainTopics = dedupeStrings(parsed.MainTopics)
	switch types.FlowType(strings.ToLower(parsed.FlowType)) {
	case types.FlowLinear, types.FlowBranching, types.FlowCyclical:
		structure.FlowType = types.FlowType(strings.ToLower(parsed.FlowType))
	}
	structure.HasIntroduction = parsed.HasIntroduction
	structure.HasConclusion = parsed.HasConclusion
}

func (s *structureService) fillFallbackDescriptions(transcript *types.FullTranscript, visual *types.VisualAnalysis, structure *types.ContentStructure) {
	for i := range structure.Chapters {
		ch := &structure.Chapters[i]
		excerpt := excerptFor(transcript, visual, ch.StartTime, ch.EndTime, 300)
		ch.Summary = firstSentence(excerpt, 200)
	}
}

// enforceCoverage guarantees monotonic, non-overlapping chapters spanning the
// timeline with no gap beyond the tolerance.
func (s *structureService) enforceCoverage(structure *types.ContentStructure, duration float64) {
	chapters := structure.Chapters
	if len(chapters) == 0 {
		structure.Chapters = []types.ContentChapter{{
			Title: "Full video", StartTime: 0, EndTime: duration, Importance: types.ImportanceMedium,
		}}
		return
	}
	sort.SliceStable(chapters, func(i, j int) bool { return chapters[i].StartTime < chapters[j].StartTime })

	chapters[0].StartTime = 0
	for i := 1; i < len(chapters); i++ {
		gap := chapters[i].StartTime - chapters[i-1].EndTime
		if gap > s.coverageToleranceSec || gap < 0 {
			chapters[i-1].EndTime = chapters[i].StartTime
		}
	}
	if math.Abs(chapters[len(chapters)-1].EndTime-duration) > s.coverageToleranceSec {
		chapters[len(chapters)-1].EndTime = duration
	}
	structure.Chapters = chapters
	structure.TransitionPoints = transitionPoints(chapters)
}

func transitionPoints(chapters []types.ContentChapter) []float64 {
	var out []float64
	for i := 1; i < len(chapters); i++ {
		out = append(out, chapters[i].StartTime)
	}
	return out
}

func excerptFor(transcript *types.FullTranscript, visual *types.VisualAnalysis, start, end float64, maxLen int) string {
	var sb strings.Builder
	if transcript != nil {
		for _, seg := range transcript.Segments {
			if seg.EndTime <= start || seg.StartTime >= end {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(seg.Text)
			if sb.Len() >= maxLen {
				break
			}
		}
	}
	if sb.Len() == 0 && visual != nil {
		for _, frame := range visual.KeyFrames {
			if frame.Timestamp < start || frame.Timestamp >= end {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(frame.Description)
			if frame.ExtractedText != "" {
				sb.WriteString(" " + frame.ExtractedText)
			}
			if sb.Len() >= maxLen {
				break
			}
		}
	}
	out := sb.String()
	if len(out) > maxLen {
		out = out[:maxLen] + "..."
	}
	return out
}

func totalDuration(transcript *types.FullTranscript, visual *types.VisualAnalysis) float64 {
	var duration float64
	if transcript != nil {
		duration = transcript.TotalDuration
	}
	if visual != nil {
		for _, f := range visual.KeyFrames {
			if f.Timestamp > duration {
				duration = f.Timestamp
			}
		}
	}
	return duration
}

func dedupeStrings(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
