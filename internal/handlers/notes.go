package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/videonotes-backend/internal/logger"
	"github.com/yungbote/videonotes-backend/internal/repos"
	"github.com/yungbote/videonotes-backend/internal/types"
)

type NotesHandler struct {
	log      *logger.Logger
	notes    repos.RenderedNoteRepo
	analyses repos.AnalysisRepo
}

func NewNotesHandler(log *logger.Logger, notes repos.RenderedNoteRepo, analyses repos.AnalysisRepo) *NotesHandler {
	return &NotesHandler{
		log:      log.With("handler", "NotesHandler"),
		notes:    notes,
		analyses: analyses,
	}
}

// GET /api/videos/:videoID/notes/:format?verbosity=brief|standard|comprehensive
//
// Serves only stored content; switching verbosity never reaches the
// generative backend.
func (h *NotesHandler) GetNote(c *gin.Context) {
	videoID := c.Param("videoID")
	format := c.Param("format")
	if videoID == "" || format == "" {
		RespondError(c, http.StatusBadRequest, "missing_params", nil)
		return
	}

	tier, ok := types.ParseVerbosity(c.Query("verbosity"))
	if !ok {
		RespondError(c, http.StatusBadRequest, "invalid_verbosity", nil)
		return
	}

	note, err := h.notes.GetByVideoAndFormat(c.Request.Context(), nil, videoID, format)
	if err != nil {
		if errors.Is(err, repos.ErrRenderedNoteNotFound) {
			RespondError(c, http.StatusNotFound, "note_not_found", err)
			return
		}
		h.log.Error("GetNote failed", "video_id", videoID, "format", format, "error", err)
		RespondError(c, http.StatusInternalServerError, "load_note_failed", err)
		return
	}

	RespondOK(c, gin.H{
		"video_id":  note.VideoID,
		"format":    note.Format,
		"verbosity": tier,
		"content": types.VerbosityVersions{
			Brief:         note.Brief,
			Standard:      note.Standard,
			Comprehensive: note.Comprehensive,
		}.Get(tier),
		"analysis_version": note.AnalysisVersion,
	})
}

// GET /api/videos/:videoID/notes
func (h *NotesHandler) ListNotes(c *gin.Context) {
	videoID := c.Param("videoID")
	if videoID == "" {
		RespondError(c, http.StatusBadRequest, "missing_video_id", nil)
		return
	}

	notes, err := h.notes.ListByVideo(c.Request.Context(), nil, videoID)
	if err != nil {
		h.log.Error("ListNotes failed", "video_id", videoID, "error", err)
		RespondError(c, http.StatusInternalServerError, "load_notes_failed", err)
		return
	}

	formats := make([]gin.H, 0, len(notes))
	for _, n := range notes {
		formats = append(formats, gin.H{
			"format":           n.Format,
			"analysis_version": n.AnalysisVersion,
			"updated_at":       n.UpdatedAt,
		})
	}
	RespondOK(c, gin.H{"video_id": videoID, "formats": formats})
}

// GET /api/videos/:videoID/analysis
func (h *NotesHandler) GetAnalysis(c *gin.Context) {
	videoID := c.Param("videoID")
	if videoID == "" {
		RespondError(c, http.StatusBadRequest, "missing_video_id", nil)
		return
	}

	row, analysis, err := h.analyses.GetLatestByVideoID(c.Request.Context(), nil, videoID)
	if err != nil {
		if errors.Is(err, repos.ErrAnalysisNotFound) {
			RespondError(c, http.StatusNotFound, "analysis_not_found", err)
			return
		}
		h.log.Error("GetAnalysis failed", "video_id", videoID, "error", err)
		RespondError(c, http.StatusInternalServerError, "load_analysis_failed", err)
		return
	}

	analysis.Version = row.Version
	RespondOK(c, analysis)
}
