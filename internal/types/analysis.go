package types

import "time"

type VerbosityTier string

const (
	VerbosityBrief         VerbosityTier = "brief"
	VerbosityStandard      VerbosityTier = "standard"
	VerbosityComprehensive VerbosityTier = "comprehensive"
)

func ParseVerbosity(s string) (VerbosityTier, bool) {
	switch VerbosityTier(s) {
	case VerbosityBrief, VerbosityStandard, VerbosityComprehensive:
		return VerbosityTier(s), true
	case "":
		return VerbosityStandard, true
	default:
		return "", false
	}
}

type VerbosityVersions struct {
	Brief         string `json:"brief"`
	Standard      string `json:"standard"`
	Comprehensive string `json:"comprehensive"`
}

func (v VerbosityVersions) Get(tier VerbosityTier) string {
	switch tier {
	case VerbosityBrief:
		return v.Brief
	case VerbosityComprehensive:
		return v.Comprehensive
	default:
		return v.Standard
	}
}

// TemplateOutput holds one format's rendered note at all three verbosity tiers.
// All tiers are materialized at pipeline time; switching tiers afterwards never
// touches the generative backend.
type TemplateOutput struct {
	Content         string            `json:"content"` // standard tier
	VerbosityLevels VerbosityVersions `json:"verbosity_levels"`
}

// EnhancedVideoAnalysis is the aggregate artifact for one video. Created once
// per successful pipeline run and immutable thereafter; re-processing stores a
// new version.
type EnhancedVideoAnalysis struct {
	VideoID string `json:"video_id"`
	Title   string `json:"title,omitempty"`
	Version int    `json:"version"`

	Transcript *FullTranscript  `json:"transcript,omitempty"`
	Visual     VisualAnalysis   `json:"visual"`
	Structure  ContentStructure `json:"structure"`
	ConceptMap ConceptMap       `json:"concept_map"`

	// Classification over the whole video.
	ContentKind       string            `json:"content_kind,omitempty"` // lecture|tutorial|demo|talk|other
	OverallDifficulty ConceptDifficulty `json:"overall_difficulty,omitempty"`

	SuggestedQuestions []StudyQuestion `json:"suggested_questions,omitempty"`
	KeyTimestamps      []KeyTimestamp  `json:"key_timestamps,omitempty"`

	// Format name -> pre-rendered output at every verbosity tier.
	AllTemplateOutputs map[string]TemplateOutput `json:"all_template_outputs"`

	// True when the pipeline ran without a transcript (visual-only fallback).
	DegradedMode bool `json:"degraded_mode,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (a *EnhancedVideoAnalysis) Duration() float64 {
	if a == nil {
		return 0
	}
	if a.Transcript != nil && a.Transcript.TotalDuration > 0 {
		return a.Transcript.TotalDuration
	}
	var max float64
	for _, f := range a.Visual.KeyFrames {
		if f.Timestamp > max {
			max = f.Timestamp
		}
	}
	for _, ch := range a.Structure.Chapters {
		if ch.EndTime > max {
			max = ch.EndTime
		}
	}
	return max
}
