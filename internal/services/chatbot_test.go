package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/videonotes-backend/internal/apperr"
	"github.com/yungbote/videonotes-backend/internal/types"
)

func chatAnalysis() *types.EnhancedVideoAnalysis {
	return &types.EnhancedVideoAnalysis{
		VideoID: "vid-c",
		Title:   "Optimizers",
		Transcript: &types.FullTranscript{
			TotalDuration: 600,
			Segments: []types.TranscriptSegment{
				{StartTime: 0, EndTime: 600, Text: "gradient descent minimizes the loss step by step"},
			},
		},
		ConceptMap: types.ConceptMap{Concepts: []types.Concept{
			{Name: "Gradient Descent", Definition: "Iterative minimization."},
		}},
		AllTemplateOutputs: map[string]types.TemplateOutput{
			"study-notes": {Content: "notes", VerbosityLevels: types.VerbosityVersions{Standard: "notes"}},
		},
	}
}

func chatRequest(analysis *types.EnhancedVideoAnalysis) *types.ChatRequest {
	return &types.ChatRequest{
		Message: "what is gradient descent?",
		VideoContext: &types.ChatbotVideoContext{
			VideoID:  "vid-c",
			Analysis: analysis,
		},
	}
}

func TestAnswer_FiltersUngroundableCitations(t *testing.T) {
	ai := newFakeAI()
	ai.responses["chat"] = `{
		"answer": "Gradient descent walks downhill on the loss surface.",
		"related_concepts": ["Gradient Descent", "Adam"],
		"citations": [
			{"type": "timestamp", "value": "2:10", "description": "where it is defined"},
			{"type": "concept", "value": "Gradient Descent", "description": "the concept"},
			{"type": "timestamp", "value": "45:00", "description": "beyond the video"},
			{"type": "concept", "value": "Adam", "description": "never extracted"}
		]
	}`
	svc := NewChatbotService(testLog(t), ai, nil)

	resp, err := svc.Answer(context.Background(), chatRequest(chatAnalysis()))
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success")
	}
	if len(resp.Citations) != 2 {
		t.Fatalf("citations = %v, want the 2 groundable ones", resp.Citations)
	}
	for _, c := range resp.Citations {
		if c.Value == "45:00" || c.Value == "Adam" {
			t.Fatalf("ungroundable citation %q leaked into the response", c.Value)
		}
	}
	// Related concepts intersect with the concept map.
	if len(resp.RelatedConcepts) != 1 || resp.RelatedConcepts[0] != "Gradient Descent" {
		t.Fatalf("related concepts = %v, want [Gradient Descent]", resp.RelatedConcepts)
	}
}

func TestAnswer_MalformedBackendFallsBackToRawText(t *testing.T) {
	ai := newFakeAI()
	ai.responses["chat"] = "Gradient descent is just walking downhill."
	svc := NewChatbotService(testLog(t), ai, nil)

	resp, err := svc.Answer(context.Background(), chatRequest(chatAnalysis()))
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if resp.Response != "Gradient descent is just walking downhill." {
		t.Fatalf("raw answer not preserved: %q", resp.Response)
	}
	if len(resp.Citations) != 0 {
		t.Fatalf("malformed output must yield no citations, got %v", resp.Citations)
	}
}

func TestAnswer_NotesOnlyMode(t *testing.T) {
	ai := newFakeAI()
	ai.responses["chat"] = `{
		"answer": "The note covers caching strategies.",
		"related_concepts": [],
		"citations": [
			{"type": "transcript", "value": "caching strategies", "description": "from the note"},
			{"type": "timestamp", "value": "1:00", "description": "not available here"}
		]
	}`
	svc := NewChatbotService(testLog(t), ai, nil)

	resp, err := svc.Answer(context.Background(), &types.ChatRequest{
		Message:     "what does the note say?",
		CurrentNote: "## Summary\nThe video explains caching strategies.",
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(resp.Citations) != 1 || resp.Citations[0].Type != types.CitationTranscript {
		t.Fatalf("notes-only answer must cite only note excerpts, got %v", resp.Citations)
	}
}

func TestAnswer_InputValidation(t *testing.T) {
	svc := NewChatbotService(testLog(t), newFakeAI(), nil)

	if _, err := svc.Answer(context.Background(), &types.ChatRequest{Message: "   "}); err == nil {
		t.Fatalf("blank message must be rejected")
	}
	if _, err := svc.Answer(context.Background(), &types.ChatRequest{Message: "hi"}); err == nil {
		t.Fatalf("request without context or note must be rejected")
	}
}

func TestAnswer_HistoryCapped(t *testing.T) {
	ai := newFakeAI()
	ai.responses["chat"] = `{"answer": "ok", "related_concepts": [], "citations": []}`
	svc := NewChatbotService(testLog(t), ai, nil)

	req := chatRequest(chatAnalysis())
	for i := 0; i < 20; i++ {
		req.ConversationHistory = append(req.ConversationHistory, types.ChatHistoryEntry{Role: "user", Content: "q"})
	}
	if _, err := svc.Answer(context.Background(), req); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	// system + capped history + final question.
	if got := len(ai.lastMessages()); got != 1+maxHistoryTurns+1 {
		t.Fatalf("prompt messages = %d, want %d", got, 1+maxHistoryTurns+1)
	}
}

// memConversations keeps conversations and turns in memory with the repo's
// semantics: one conversation per (video, user), monotonic seq per append.
type memConversations struct {
	mu    sync.Mutex
	convs []*types.ChatConversation
	turns map[uuid.UUID][]*types.ChatTurnRow
}

func newMemConversations() *memConversations {
	return &memConversations{turns: map[uuid.UUID][]*types.ChatTurnRow{}}
}

func (m *memConversations) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.ChatConversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.convs {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memConversations) GetOrCreate(_ context.Context, _ *gorm.DB, videoID string, userID *uuid.UUID) (*types.ChatConversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.convs {
		if c.VideoID == videoID {
			return c, nil
		}
	}
	conv := &types.ChatConversation{ID: uuid.New(), VideoID: videoID, UserID: userID}
	m.convs = append(m.convs, conv)
	return conv, nil
}

func (m *memConversations) AppendTurn(_ context.Context, _ *gorm.DB, conversationID uuid.UUID, question string) (*types.ChatTurnRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var conv *types.ChatConversation
	for _, c := range m.convs {
		if c.ID == conversationID {
			conv = c
			break
		}
	}
	if conv == nil {
		return nil, gorm.ErrRecordNotFound
	}
	turn := &types.ChatTurnRow{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Seq:            conv.NextSeq,
		Question:       question,
		Status:         types.TurnStatusAwaitingAnswer,
	}
	conv.NextSeq++
	m.turns[conversationID] = append(m.turns[conversationID], turn)
	return turn, nil
}

func (m *memConversations) UpdateTurn(_ context.Context, _ *gorm.DB, turnID uuid.UUID, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, turns := range m.turns {
		for _, turn := range turns {
			if turn.ID != turnID {
				continue
			}
			if v, ok := fields["status"].(string); ok {
				turn.Status = v
			}
			if v, ok := fields["answer"].(string); ok {
				turn.Answer = v
			}
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *memConversations) LastTurns(_ context.Context, _ *gorm.DB, conversationID uuid.UUID, limit int) ([]*types.ChatTurnRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	turns := m.turns[conversationID]
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

func (m *memConversations) turnsFor(convID uuid.UUID) []*types.ChatTurnRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turns[convID]
}

func TestAnswer_PersistsConversation(t *testing.T) {
	ai := newFakeAI()
	ai.responses["chat"] = `{"answer": "It walks downhill.", "related_concepts": [], "citations": []}`
	convs := newMemConversations()
	svc := NewChatbotService(testLog(t), ai, convs)

	resp, err := svc.Answer(context.Background(), chatRequest(chatAnalysis()))
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if resp.ConversationID == "" {
		t.Fatalf("first answer must return the conversation id")
	}
	convID, err := uuid.Parse(resp.ConversationID)
	if err != nil {
		t.Fatalf("conversation id %q is not a uuid: %v", resp.ConversationID, err)
	}

	turns := convs.turnsFor(convID)
	if len(turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(turns))
	}
	if turns[0].Seq != 0 || turns[0].Status != types.TurnStatusAnswered {
		t.Fatalf("turn not finalized: seq %d status %q", turns[0].Seq, turns[0].Status)
	}
	if turns[0].Question != "what is gradient descent?" || turns[0].Answer != resp.Response {
		t.Fatalf("turn content wrong: %+v", turns[0])
	}
}

func TestAnswer_ResumesConversationWithStoredHistory(t *testing.T) {
	ai := newFakeAI()
	ai.responses["chat"] = `{"answer": "It walks downhill.", "related_concepts": [], "citations": []}`
	convs := newMemConversations()
	svc := NewChatbotService(testLog(t), ai, convs)

	first, err := svc.Answer(context.Background(), chatRequest(chatAnalysis()))
	if err != nil {
		t.Fatalf("first Answer: %v", err)
	}

	followUp := chatRequest(chatAnalysis())
	followUp.Message = "and what about momentum?"
	followUp.ConversationID = first.ConversationID
	second, err := svc.Answer(context.Background(), followUp)
	if err != nil {
		t.Fatalf("second Answer: %v", err)
	}
	if second.ConversationID != first.ConversationID {
		t.Fatalf("conversation id changed across turns: %q then %q", first.ConversationID, second.ConversationID)
	}

	// system + persisted question + persisted answer + new question.
	messages := ai.lastMessages()
	if len(messages) != 4 {
		t.Fatalf("prompt messages = %d, want 4", len(messages))
	}
	if messages[1].Content != "what is gradient descent?" || messages[2].Role != "assistant" {
		t.Fatalf("stored history missing from prompt: %+v", messages[1:3])
	}

	convID, _ := uuid.Parse(first.ConversationID)
	turns := convs.turnsFor(convID)
	if len(turns) != 2 || turns[1].Seq != 1 {
		t.Fatalf("follow-up turn not appended: %d turns", len(turns))
	}
}

func TestAnswer_FailedGenerationMarksTurnFailed(t *testing.T) {
	ai := newFakeAI()
	ai.errs["chat"] = apperr.NewBackendError(apperr.BackendUnavailable, "chat", errors.New("scripted outage"))
	convs := newMemConversations()
	svc := NewChatbotService(testLog(t), ai, convs)

	if _, err := svc.Answer(context.Background(), chatRequest(chatAnalysis())); err == nil {
		t.Fatalf("backend failure must surface")
	}

	conv, err := convs.GetOrCreate(context.Background(), nil, "vid-c", nil)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	turns := convs.turnsFor(conv.ID)
	if len(turns) != 1 || turns[0].Status != types.TurnStatusFailed {
		t.Fatalf("failed turn not recorded: %+v", turns)
	}
}
