package services

import (
	"sort"
	"strings"

	"github.com/yungbote/videonotes-backend/internal/logger"
	"github.com/yungbote/videonotes-backend/internal/types"
)

// VisualService turns sampled frames into a VisualAnalysis. Pure transform,
// no backend calls.
type VisualService interface {
	Summarize(frames []RawFrame) *types.VisualAnalysis
}

type visualService struct {
	log *logger.Logger
}

func NewVisualService(log *logger.Logger) VisualService {
	return &visualService{log: log.With("service", "VisualService")}
}

var (
	chartMarkers   = []string{"chart", "graph", "plot", "axis", "axes", "bar", "pie", "histogram", "trend"}
	diagramMarkers = []string{"diagram", "flow", "arrow", "node", "architecture", "schematic", "workflow", "uml"}
	slideMarkers   = []string{"slide", "bullet", "title", "heading", "list", "presentation"}
	sceneMarkers   = []string{"person", "speaker", "room", "desk", "whiteboard", "face", "camera", "stage"}
)

func (s *visualService) Summarize(frames []RawFrame) *types.VisualAnalysis {
	out := &types.VisualAnalysis{KeyFrames: make([]types.VisualFrame, 0, len(frames))}
	if len(frames) == 0 {
		out.VisualComplexity = types.ComplexityLow
		return out
	}

	sorted := make([]RawFrame, len(frames))
	copy(sorted, frames)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	withText := 0
	elementTotal := 0
	typesSeen := map[types.FrameType]bool{}
	for _, raw := range sorted {
		frameType := classifyFrame(raw)
		typesSeen[frameType] = true
		elementTotal += len(raw.Elements)
		if strings.TrimSpace(raw.ExtractedText) != "" {
			withText++
		}
		out.KeyFrames = append(out.KeyFrames, types.VisualFrame{
			Timestamp:     raw.Timestamp,
			Description:   raw.Description,
			Elements:      raw.Elements,
			ExtractedText: raw.ExtractedText,
			Type:          frameType,
			Confidence:    clamp01(raw.Confidence),
		})
	}

	out.HasSlides = typesSeen[types.FrameSlide]
	out.HasCharts = typesSeen[types.FrameChart]
	out.HasDiagrams = typesSeen[types.FrameDiagram]
	out.ScreenTextRatio = float64(withText) / float64(len(sorted))

	// Monotone in (type diversity x elements per frame).
	elementsPerFrame := float64(elementTotal) / float64(len(sorted))
	score := float64(len(typesSeen)) * (1 + elementsPerFrame)
	switch {
	case score >= 9:
		out.VisualComplexity = types.ComplexityHigh
	case score >= 4:
		out.VisualComplexity = types.ComplexityMedium
	default:
		out.VisualComplexity = types.ComplexityLow
	}
	return out
}

func classifyFrame(raw RawFrame) types.FrameType {
	haystack := strings.ToLower(raw.Description + " " + strings.Join(raw.Elements, " "))
	textDensity := len(strings.Fields(raw.ExtractedText))

	switch {
	case containsAny(haystack, chartMarkers):
		return types.FrameChart
	case containsAny(haystack, diagramMarkers):
		return types.FrameDiagram
	case containsAny(haystack, slideMarkers) || textDensity >= 12:
		return types.FrameSlide
	case containsAny(haystack, sceneMarkers):
		return types.FrameScene
	case textDensity > 0:
		return types.FrameSlide
	}
	if strings.TrimSpace(haystack) == "" {
		return types.FrameOther
	}
	return types.FrameScene
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
