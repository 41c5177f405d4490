package types

// ProcessingResponse is the shape returned to the UI after a pipeline run.
// Failures are partial-success: failed formats are flagged, not fatal.
type ProcessingResponse struct {
	Title             string            `json:"title"`
	Content           string            `json:"content"` // primary format, standard tier
	Template          string            `json:"template"`
	VerbosityVersions VerbosityVersions `json:"verbosityVersions"`

	AllTemplateOutputs map[string]TemplateOutput `json:"allTemplateOutputs,omitempty"`
	FailedFormats      []string                  `json:"failedFormats,omitempty"`

	ContentAnalysis *ContentAnalysisSummary `json:"contentAnalysis,omitempty"`
	Quality         *QualitySummary         `json:"quality,omitempty"`
}

type ContentAnalysisSummary struct {
	ChapterCount    int             `json:"chapter_count"`
	ConceptCount    int             `json:"concept_count"`
	FlowType        FlowType        `json:"flow_type"`
	ContentKind     string          `json:"content_kind,omitempty"`
	VisualComplex   ComplexityLevel `json:"visual_complexity"`
	ScreenTextRatio float64         `json:"screen_text_ratio"`
	DegradedMode    bool            `json:"degraded_mode"`
}

type QualitySummary struct {
	TranscriptConfidence float64 `json:"transcript_confidence"`
	FormatsRequested     int     `json:"formats_requested"`
	FormatsRendered      int     `json:"formats_rendered"`
	StructuralWarnings   int     `json:"structural_warnings"`
}
