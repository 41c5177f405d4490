package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/yungbote/videonotes-backend/internal/apperr"
	"github.com/yungbote/videonotes-backend/internal/logger"
	"github.com/yungbote/videonotes-backend/internal/types"
)

// TranscriptService normalizes raw caption cues into an ordered,
// non-overlapping FullTranscript. Importance flags are a draft until
// BackfillImportance runs after concept extraction.
type TranscriptService interface {
	Normalize(track *RawCaptionTrack) (*types.FullTranscript, error)
	BackfillImportance(t *types.FullTranscript, cm *types.ConceptMap)
}

type transcriptService struct {
	log *logger.Logger

	// Adjacent cues closer than mergeGapSec with a confidence delta under
	// maxConfidenceDelta are merged to avoid fragment explosion.
	mergeGapSec        float64
	maxConfidenceDelta float64
}

func NewTranscriptService(log *logger.Logger) TranscriptService {
	return &transcriptService{
		log:                log.With("service", "TranscriptService"),
		mergeGapSec:        0.75,
		maxConfidenceDelta: 0.2,
	}
}

func (s *transcriptService) Normalize(track *RawCaptionTrack) (*types.FullTranscript, error) {
	if track == nil || len(track.Cues) == 0 {
		return nil, apperr.ErrNoTranscriptAvailable
	}

	cues := make([]RawCaptionCue, 0, len(track.Cues))
	for _, cue := range track.Cues {
		text := strings.TrimSpace(cue.Text)
		if text == "" || cue.End <= cue.Start {
			continue
		}
		cue.Text = text
		cues = append(cues, cue)
	}
	if len(cues) == 0 {
		return nil, apperr.ErrNoTranscriptAvailable
	}

	sort.SliceStable(cues, func(i, j int) bool { return cues[i].Start < cues[j].Start })

	segments := make([]types.TranscriptSegment, 0, len(cues))
	cur := segmentFromCue(cues[0])
	for _, cue := range cues[1:] {
		gap := cue.Start - cur.EndTime
		sameSpeaker := cue.Speaker == "" || cur.Speaker == "" || cue.Speaker == cur.Speaker
		if gap < s.mergeGapSec && math.Abs(cue.Confidence-cur.Confidence) <= s.maxConfidenceDelta && sameSpeaker {
			cur = mergeCue(cur, cue)
			continue
		}
		segments = append(segments, cur)
		cur = segmentFromCue(cue)
	}
	segments = append(segments, cur)

	// Clamp residual overlaps so segment ranges stay disjoint.
	for i := 1; i < len(segments); i++ {
		if segments[i].StartTime < segments[i-1].EndTime {
			segments[i].StartTime = segments[i-1].EndTime
			if segments[i].EndTime < segments[i].StartTime {
				segments[i].EndTime = segments[i].StartTime
			}
		}
	}

	var confidenceSum float64
	wordCount := 0
	var maxEnd float64
	for _, seg := range segments {
		confidenceSum += seg.Confidence
		wordCount += len(strings.Fields(seg.Text))
		if seg.EndTime > maxEnd {
			maxEnd = seg.EndTime
		}
	}

	totalDuration := track.VideoFacts.DurationSeconds
	if maxEnd > totalDuration {
		totalDuration = maxEnd
	}

	language := track.Language
	if language == "" {
		language = "en"
	}

	t := &types.FullTranscript{
		Segments:          segments,
		TotalDuration:     totalDuration,
		Language:          language,
		AverageConfidence: confidenceSum / float64(len(segments)),
		WordCount:         wordCount,
	}
	s.log.Debug("Normalized transcript", "cues", len(track.Cues), "segments", len(segments), "duration", totalDuration)
	return t, nil
}

func segmentFromCue(cue RawCaptionCue) types.TranscriptSegment {
	return types.TranscriptSegment{
		StartTime:  cue.Start,
		EndTime:    cue.End,
		Text:       cue.Text,
		Speaker:    cue.Speaker,
		Confidence: clamp01(cue.Confidence),
	}
}

func mergeCue(seg types.TranscriptSegment, cue RawCaptionCue) types.TranscriptSegment {
	prevDur := seg.EndTime - seg.StartTime
	cueDur := cue.End - cue.Start
	if cue.End > seg.EndTime {
		seg.EndTime = cue.End
	}
	seg.Text = seg.Text + " " + cue.Text
	if prevDur+cueDur > 0 {
		seg.Confidence = clamp01((seg.Confidence*prevDur + clamp01(cue.Confidence)*cueDur) / (prevDur + cueDur))
	}
	if seg.Speaker == "" {
		seg.Speaker = cue.Speaker
	}
	return seg
}

// BackfillImportance finalizes isImportant: a segment is important when it
// mentions a concept (or alias) that recurs in the concept map.
func (s *transcriptService) BackfillImportance(t *types.FullTranscript, cm *types.ConceptMap) {
	if t == nil || cm == nil || len(cm.Concepts) == 0 {
		return
	}
	var recurring []string
	for _, c := range cm.Concepts {
		if len(c.Timestamps) < 2 {
			continue
		}
		recurring = append(recurring, strings.ToLower(c.Name))
		for _, alias := range c.Aliases {
			recurring = append(recurring, strings.ToLower(alias))
		}
	}
	if len(recurring) == 0 {
		return
	}
	for i := range t.Segments {
		lower := strings.ToLower(t.Segments[i].Text)
		for _, term := range recurring {
			if term != "" && strings.Contains(lower, term) {
				t.Segments[i].IsImportant = true
				break
			}
		}
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// formatTimestamp renders seconds as m:ss or h:mm:ss for prompts and labels.
func formatTimestamp(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	sec := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
