package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/videonotes-backend/internal/logger"
	"github.com/yungbote/videonotes-backend/internal/repos"
	"github.com/yungbote/videonotes-backend/internal/services"
	"github.com/yungbote/videonotes-backend/internal/types"
)

type ChatHandler struct {
	log      *logger.Logger
	chatbot  services.ChatbotService
	analyses repos.AnalysisRepo
}

func NewChatHandler(log *logger.Logger, chatbot services.ChatbotService, analyses repos.AnalysisRepo) *ChatHandler {
	return &ChatHandler{
		log:      log.With("handler", "ChatHandler"),
		chatbot:  chatbot,
		analyses: analyses,
	}
}

// POST /api/chat
//
// The client may send a full video context, or just a video_id (the stored
// artifact is loaded), or neither plus a current_note for notes-only mode.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req types.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	if req.VideoContext != nil && req.VideoContext.Analysis == nil && req.VideoContext.VideoID != "" {
		row, analysis, err := h.analyses.GetLatestByVideoID(c.Request.Context(), nil, req.VideoContext.VideoID)
		if err != nil && !errors.Is(err, repos.ErrAnalysisNotFound) {
			h.log.Error("Chat analysis load failed", "video_id", req.VideoContext.VideoID, "error", err)
			RespondError(c, http.StatusInternalServerError, "load_analysis_failed", err)
			return
		}
		if err == nil {
			analysis.Version = row.Version
			req.VideoContext.Analysis = analysis
		}
	}

	resp, err := h.chatbot.Answer(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Chat failed", "error", err)
		RespondError(c, statusForPipelineError(err), "chat_failed", err)
		return
	}
	RespondOK(c, resp)
}
