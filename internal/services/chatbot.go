package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/videonotes-backend/internal/logger"
	"github.com/yungbote/videonotes-backend/internal/repos"
	"github.com/yungbote/videonotes-backend/internal/types"
)

const maxHistoryTurns = 5

// ChatbotService answers questions grounded in a video's analysis artifact,
// returning typed citations that always reference real elements of the
// supplied context. Replays of the same question are side-effect free on the
// artifact; history appends serialize per conversation.
type ChatbotService interface {
	Answer(ctx context.Context, req *types.ChatRequest) (*types.ChatResponse, error)
}

type chatbotService struct {
	log *logger.Logger
	ai  AIClient

	conversations repos.ConversationRepo // optional; nil disables persistence

	// One writer per conversation for history appends.
	convLocks sync.Map // uuid.UUID -> *sync.Mutex
}

func NewChatbotService(log *logger.Logger, ai AIClient, conversations repos.ConversationRepo) ChatbotService {
	return &chatbotService{
		log:           log.With("service", "ChatbotService"),
		ai:            ai,
		conversations: conversations,
	}
}

func (s *chatbotService) Answer(ctx context.Context, req *types.ChatRequest) (*types.ChatResponse, error) {
	if req == nil || strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("message required")
	}

	notesOnly := req.VideoContext == nil || req.VideoContext.Analysis == nil
	if notesOnly && strings.TrimSpace(req.CurrentNote) == "" {
		return nil, fmt.Errorf("either a video context or a current note is required")
	}

	convID := s.resolveConversation(ctx, req)

	// History is read before the new question is appended so the pending turn
	// never shows up as its own context.
	history := req.ConversationHistory
	if len(history) == 0 && convID != uuid.Nil {
		history = s.historyFor(ctx, convID)
	}

	turn := s.beginTurn(ctx, convID, req.Message)

	answer, err := s.generate(ctx, req, history, notesOnly)
	if err != nil {
		s.finishTurn(ctx, convID, turn, nil, types.TurnStatusFailed)
		return nil, err
	}

	if convID != uuid.Nil {
		answer.ConversationID = convID.String()
	}
	s.finishTurn(ctx, convID, turn, answer, types.TurnStatusAnswered)
	return answer, nil
}

// resolveConversation returns the conversation the turn belongs to. A request
// without an id gets the video's conversation, created on first use, so the
// client learns the id from the response.
func (s *chatbotService) resolveConversation(ctx context.Context, req *types.ChatRequest) uuid.UUID {
	if s.conversations == nil {
		return uuid.Nil
	}
	if req.ConversationID != "" {
		convID, err := uuid.Parse(req.ConversationID)
		if err != nil {
			s.log.Warn("Invalid conversation id", "conversation_id", req.ConversationID)
			return uuid.Nil
		}
		return convID
	}
	if req.VideoContext == nil || req.VideoContext.VideoID == "" {
		return uuid.Nil
	}
	conv, err := s.conversations.GetOrCreate(ctx, nil, req.VideoContext.VideoID, nil)
	if err != nil {
		s.log.Warn("Failed to resolve conversation", "video_id", req.VideoContext.VideoID, "error", err)
		return uuid.Nil
	}
	return conv.ID
}

// historyFor rebuilds the capped history window from persisted turns when the
// request carries none.
func (s *chatbotService) historyFor(ctx context.Context, convID uuid.UUID) []types.ChatHistoryEntry {
	turns, err := s.conversations.LastTurns(ctx, nil, convID, maxHistoryTurns)
	if err != nil {
		s.log.Warn("Failed to load conversation history", "conversation_id", convID, "error", err)
		return nil
	}
	var history []types.ChatHistoryEntry
	for _, turn := range turns {
		history = append(history, types.ChatHistoryEntry{Role: "user", Content: turn.Question})
		if turn.Status == types.TurnStatusAnswered && turn.Answer != "" {
			history = append(history, types.ChatHistoryEntry{Role: "assistant", Content: turn.Answer})
		}
	}
	return history
}

func (s *chatbotService) generate(ctx context.Context, req *types.ChatRequest, history []types.ChatHistoryEntry, notesOnly bool) (*types.ChatResponse, error) {
	messages := s.buildMessages(req, history, notesOnly)

	videoID := ""
	if req.VideoContext != nil {
		videoID = req.VideoContext.VideoID
	}
	completion, err := s.ai.Chat(ctx, messages, &AIOptions{Purpose: "chat", VideoID: videoID, Temperature: 0.3})
	if err != nil {
		return nil, err
	}

	answerText, citations, related := s.parseAnswer(completion.Content)

	grounding := GroundingInput{NotesOnly: notesOnly, NoteText: req.CurrentNote}
	var conceptMap *types.ConceptMap
	if !notesOnly {
		grounding.Transcript = req.VideoContext.Analysis.Transcript
		conceptMap = &req.VideoContext.Analysis.ConceptMap
		grounding.ConceptMap = conceptMap
	}

	valid, violations := GroundCitations(citations, grounding)
	for _, v := range violations {
		// Violations must never reach the user; they are dropped here and
		// logged for the invariant tests to catch upstream causes.
		s.log.Warn("Dropped ungroundable citation", "video_id", videoID, "error", v.Error())
	}

	return &types.ChatResponse{
		Success:         true,
		Response:        answerText,
		RelatedConcepts: filterToExistingConcepts(related, conceptMap),
		Citations:       nonNilCitations(valid),
	}, nil
}

func (s *chatbotService) buildMessages(req *types.ChatRequest, history []types.ChatHistoryEntry, notesOnly bool) []AIMessage {
	var system strings.Builder
	system.WriteString("You answer questions about one specific video. Ground every claim in the provided context. ")
	if req.VideoContext != nil && strings.EqualFold(req.VideoContext.SubscriptionTier, "premium") {
		system.WriteString("Give thorough, detailed answers. ")
	} else {
		system.WriteString("Keep answers concise. ")
	}
	system.WriteString("Return ONLY JSON: ")
	if notesOnly {
		system.WriteString(`{"answer":"","related_concepts":[],"citations":[{"type":"transcript","value":"","description":""}]}. `)
		system.WriteString("Only the rendered note below is available; cite only short verbatim excerpts of it, never timestamps.")
	} else {
		system.WriteString(`{"answer":"","related_concepts":[""],"citations":[{"type":"timestamp|concept|transcript","value":"","description":""}]}. `)
		system.WriteString("timestamp values are m:ss within the video, concept values are concept names from the list, transcript values are short verbatim excerpts.")
	}

	var user strings.Builder
	if notesOnly {
		user.WriteString("Rendered note")
		if req.CurrentFormat != "" {
			user.WriteString(" (" + req.CurrentFormat + ")")
		}
		user.WriteString(":\n")
		user.WriteString(truncate(req.CurrentNote, 6000))
	} else {
		a := req.VideoContext.Analysis
		user.WriteString(artifactDigest(a, 6000))
		if req.VideoContext.CurrentFormat != "" {
			if out, ok := a.AllTemplateOutputs[req.VideoContext.CurrentFormat]; ok {
				user.WriteString("\n\nNote the user is currently viewing:\n")
				user.WriteString(truncate(out.VerbosityLevels.Get(req.VideoContext.CurrentVerbosity), 2000))
			}
		}
		if len(req.VideoContext.RecentQuestions) > 0 {
			user.WriteString("\n\nQuestions the user already asked this session:\n")
			for _, q := range req.VideoContext.RecentQuestions {
				user.WriteString("- " + q + "\n")
			}
		}
	}

	messages := []AIMessage{{Role: "system", Content: system.String()}}

	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	for _, h := range history {
		role := h.Role
		if role != "assistant" {
			role = "user"
		}
		messages = append(messages, AIMessage{Role: role, Content: h.Content})
	}

	user.WriteString("\n\nQuestion: " + req.Message)
	messages = append(messages, AIMessage{Role: "user", Content: user.String()})
	return messages
}

type parsedAnswer struct {
	Answer          string   `json:"answer"`
	RelatedConcepts []string `json:"related_concepts"`
	Citations       []struct {
		Type        string `json:"type"`
		Value       string `json:"value"`
		Description string `json:"description"`
	} `json:"citations"`
}

// parseAnswer tolerates non-JSON output by falling back to the raw text with
// no citations.
func (s *chatbotService) parseAnswer(raw string) (string, []types.Citation, []string) {
	block, ok := extractJSONBlock(raw)
	if ok {
		var parsed parsedAnswer
		if err := json.Unmarshal([]byte(block), &parsed); err == nil && strings.TrimSpace(parsed.Answer) != "" {
			var citations []types.Citation
			for _, c := range parsed.Citations {
				citations = append(citations, types.Citation{
					Type:        types.CitationType(strings.ToLower(strings.TrimSpace(c.Type))),
					Value:       strings.TrimSpace(c.Value),
					Description: strings.TrimSpace(c.Description),
				})
			}
			return strings.TrimSpace(parsed.Answer), citations, parsed.RelatedConcepts
		}
	}
	s.log.Warn("Chat answer was not valid JSON, using raw text", "raw", truncate(raw, 1000))
	return strings.TrimSpace(raw), nil, nil
}

func filterToExistingConcepts(names []string, m *types.ConceptMap) []string {
	out := []string{}
	if m == nil {
		return out
	}
	seen := map[string]bool{}
	for _, name := range names {
		c := m.FindConcept(name)
		if c == nil || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		out = append(out, c.Name)
	}
	return out
}

func nonNilCitations(in []types.Citation) []types.Citation {
	if in == nil {
		return []types.Citation{}
	}
	return in
}

// beginTurn appends the question to the conversation under the per-
// conversation lock and returns the pending turn row. Persistence is
// best-effort: the engine still answers when no repo is wired.
func (s *chatbotService) beginTurn(ctx context.Context, convID uuid.UUID, question string) *types.ChatTurnRow {
	if s.conversations == nil || convID == uuid.Nil {
		return nil
	}

	lock := s.lockFor(convID)
	lock.Lock()
	defer lock.Unlock()

	turn, err := s.conversations.AppendTurn(ctx, nil, convID, question)
	if err != nil {
		s.log.Warn("Failed to append chat turn", "conversation_id", convID, "error", err)
		return nil
	}
	return turn
}

func (s *chatbotService) finishTurn(ctx context.Context, convID uuid.UUID, turn *types.ChatTurnRow, answer *types.ChatResponse, status string) {
	if s.conversations == nil || turn == nil {
		return
	}

	lock := s.lockFor(convID)
	lock.Lock()
	defer lock.Unlock()

	fields := map[string]interface{}{"status": status}
	if answer != nil {
		fields["answer"] = answer.Response
		if blob, err := json.Marshal(answer.RelatedConcepts); err == nil {
			fields["related_concepts"] = blob
		}
		if blob, err := json.Marshal(answer.Citations); err == nil {
			fields["citations"] = blob
		}
	}
	if err := s.conversations.UpdateTurn(ctx, nil, turn.ID, fields); err != nil {
		s.log.Warn("Failed to update chat turn", "turn_id", turn.ID, "error", err)
	}
}

func (s *chatbotService) lockFor(convID uuid.UUID) *sync.Mutex {
	actual, _ := s.convLocks.LoadOrStore(convID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}
