package types

type ImportanceLevel string

const (
	ImportanceLow    ImportanceLevel = "low"
	ImportanceMedium ImportanceLevel = "medium"
	ImportanceHigh   ImportanceLevel = "high"
)

type FlowType string

const (
	FlowLinear    FlowType = "linear"
	FlowBranching FlowType = "branching"
	FlowCyclical  FlowType = "cyclical"
)

type ContentChapter struct {
	Title      string          `json:"title"`
	StartTime  float64         `json:"start_time"`
	EndTime    float64         `json:"end_time"`
	Summary    string          `json:"summary"`
	KeyPoints  []string        `json:"key_points"`
	Importance ImportanceLevel `json:"importance"`
}

type ContentStructure struct {
	// Ordered, non-overlapping, covering the timeline (small gaps tolerated).
	Chapters []ContentChapter `json:"chapters"`

	MainTopics []string `json:"main_topics"`
	FlowType   FlowType `json:"flow_type"`

	HasIntroduction bool `json:"has_introduction"`
	HasConclusion   bool `json:"has_conclusion"`

	TransitionPoints []float64 `json:"transition_points"`
}
