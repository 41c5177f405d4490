package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/videonotes-backend/internal/apperr"
	"github.com/yungbote/videonotes-backend/internal/logger"
	"github.com/yungbote/videonotes-backend/internal/services"
)

type PipelineHandler struct {
	log      *logger.Logger
	pipeline services.PipelineService
}

func NewPipelineHandler(log *logger.Logger, pipeline services.PipelineService) *PipelineHandler {
	return &PipelineHandler{
		log:      log.With("handler", "PipelineHandler"),
		pipeline: pipeline,
	}
}

type processRequest struct {
	Formats []string `json:"formats,omitempty"`
}

// POST /api/videos/:videoID/process
func (h *PipelineHandler) ProcessVideo(c *gin.Context) {
	videoID := c.Param("videoID")
	if videoID == "" {
		RespondError(c, http.StatusBadRequest, "missing_video_id", nil)
		return
	}

	var req processRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_body", err)
			return
		}
	}

	resp, err := h.pipeline.Process(c.Request.Context(), videoID, nil, req.Formats)
	if err != nil {
		h.log.Error("ProcessVideo failed", "video_id", videoID, "error", err)
		RespondError(c, statusForPipelineError(err), "processing_failed", err)
		return
	}
	RespondOK(c, resp)
}

func statusForPipelineError(err error) int {
	kind, ok := apperr.BackendKind(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case apperr.BackendQuotaExceeded:
		return http.StatusTooManyRequests
	case apperr.BackendTimeout:
		return http.StatusGatewayTimeout
	case apperr.BackendUnavailable, apperr.BackendMalformedOutput:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
