package services

import "context"

// Raw inputs from the captions/metadata provider. Cues may overlap and carry
// variable confidence; the normalizer turns them into a FullTranscript.

type RawCaptionCue struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Speaker    string  `json:"speaker,omitempty"`
}

type VideoFacts struct {
	Title           string  `json:"title,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	ChannelTitle    string  `json:"channel_title,omitempty"`
}

type RawCaptionTrack struct {
	Cues       []RawCaptionCue `json:"cues"`
	Language   string          `json:"language"`
	VideoFacts VideoFacts      `json:"video_facts"`
}

// CaptionProvider fetches raw caption cues and video facts. Absence of captions
// is an expected condition and is reported as apperr.ErrNoTranscriptAvailable,
// which triggers the visual-only fallback path.
type CaptionProvider interface {
	FetchCaptions(ctx context.Context, videoID string) (*RawCaptionTrack, error)
}

type RawFrame struct {
	Timestamp     float64  `json:"timestamp"`
	Description   string   `json:"description"`
	Elements      []string `json:"elements,omitempty"`
	ExtractedText string   `json:"extracted_text,omitempty"`
	Confidence    float64  `json:"confidence"`
}

// FrameProvider samples visual frames (descriptions plus on-screen text) for a
// video. An empty result is valid.
type FrameProvider interface {
	SampleFrames(ctx context.Context, videoID string) ([]RawFrame, error)
}
