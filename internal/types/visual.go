package types

type FrameType string

const (
	FrameSlide   FrameType = "slide"
	FrameDiagram FrameType = "diagram"
	FrameChart   FrameType = "chart"
	FrameScene   FrameType = "scene"
	FrameOther   FrameType = "other"
)

type ComplexityLevel string

const (
	ComplexityLow    ComplexityLevel = "low"
	ComplexityMedium ComplexityLevel = "medium"
	ComplexityHigh   ComplexityLevel = "high"
)

type VisualFrame struct {
	Timestamp     float64   `json:"timestamp"`
	Description   string    `json:"description"`
	Elements      []string  `json:"elements"`
	ExtractedText string    `json:"extracted_text,omitempty"`
	Type          FrameType `json:"type"`
	Confidence    float64   `json:"confidence"`
}

type VisualAnalysis struct {
	KeyFrames []VisualFrame `json:"key_frames"`

	HasSlides   bool `json:"has_slides"`
	HasCharts   bool `json:"has_charts"`
	HasDiagrams bool `json:"has_diagrams"`

	VisualComplexity ComplexityLevel `json:"visual_complexity"`

	// Fraction of key frames with non-empty extracted text.
	ScreenTextRatio float64 `json:"screen_text_ratio"`
}
