package types

// Pure JSON contracts for transcript data. Not DB models.

type TranscriptSegment struct {
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Text       string  `json:"text"`
	Speaker    string  `json:"speaker,omitempty"`
	Confidence float64 `json:"confidence"`

	// Finalized after concept extraction: true when the segment mentions a
	// concept (or alias) that recurs in the concept map.
	IsImportant bool `json:"is_important,omitempty"`
}

type FullTranscript struct {
	Segments          []TranscriptSegment `json:"segments"`
	TotalDuration     float64             `json:"total_duration"`
	Language          string              `json:"language"`
	AverageConfidence float64             `json:"average_confidence"`
	WordCount         int                 `json:"word_count"`
}

// Text joins all segment text with single spaces. Used for substring grounding
// of transcript citations and for prompt assembly.
func (t *FullTranscript) Text() string {
	if t == nil || len(t.Segments) == 0 {
		return ""
	}
	out := ""
	for i, seg := range t.Segments {
		if i > 0 {
			out += " "
		}
		out += seg.Text
	}
	return out
}

func (t *FullTranscript) Empty() bool {
	return t == nil || len(t.Segments) == 0
}
