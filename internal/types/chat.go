package types

type CitationType string

const (
	CitationTimestamp  CitationType = "timestamp"
	CitationConcept    CitationType = "concept"
	CitationTranscript CitationType = "transcript"
)

type Citation struct {
	Type        CitationType `json:"type"`
	Value       string       `json:"value"`
	Description string       `json:"description"`
}

// ChatbotVideoContext is a read-only, session-scoped view over a video's
// analysis. It references the artifact, it does not own it.
type ChatbotVideoContext struct {
	VideoID  string                 `json:"video_id"`
	Analysis *EnhancedVideoAnalysis `json:"analysis,omitempty"`

	CurrentFormat    string        `json:"current_format,omitempty"`
	CurrentVerbosity VerbosityTier `json:"current_verbosity,omitempty"`

	SubscriptionTier string   `json:"subscription_tier,omitempty"`
	RecentQuestions  []string `json:"recent_questions,omitempty"`
}

type ChatHistoryEntry struct {
	Role    string `json:"role"` // user | assistant
	Content string `json:"content"`
}

type ChatRequest struct {
	Message        string               `json:"message"`
	ConversationID string               `json:"conversation_id,omitempty"`
	VideoContext   *ChatbotVideoContext `json:"video_context,omitempty"`

	// Notes-only mode inputs: when no full analysis exists, the engine answers
	// from the rendered note text alone.
	CurrentNote   string `json:"current_note,omitempty"`
	CurrentFormat string `json:"current_format,omitempty"`

	// At most the last 5 turns are used.
	ConversationHistory []ChatHistoryEntry `json:"conversation_history,omitempty"`
}

type ChatResponse struct {
	Success         bool       `json:"success"`
	Response        string     `json:"response"`
	RelatedConcepts []string   `json:"related_concepts"`
	Citations       []Citation `json:"citations"`

	// Assigned on first contact for a video; send it back to continue the
	// same conversation.
	ConversationID string `json:"conversation_id,omitempty"`
}
