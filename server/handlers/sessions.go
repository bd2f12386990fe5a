// Package handlers implements the HTTP API: uploads, status polling,
// result retrieval and export.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"recserver/database"
	"recserver/export"
	apperrors "recserver/server/errors"
	"recserver/server/services"
)

// SessionHandler serves the upload/status/results API.
type SessionHandler struct {
	db             *database.DB
	processor      *services.ProcessingService
	maxUploadBytes int64
}

// NewSessionHandler creates the session API handler.
func NewSessionHandler(db *database.DB, processor *services.ProcessingService, maxUploadBytes int64) *SessionHandler {
	return &SessionHandler{
		db:             db,
		processor:      processor,
		maxUploadBytes: maxUploadBytes,
	}
}

// HandleUpload accepts a chat export archive and starts processing
// @Summary Upload a chat export
// @Description Accepts a zip archive with WhatsApp chat transcripts and vCard files and starts extraction in the background
// @Tags sessions
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Zip archive with the exported chat"
// @Success 202 {object} UploadResponse "Processing started"
// @Failure 400 {object} ErrorResponse "Not a zip archive"
// @Failure 413 {object} ErrorResponse "Archive too large"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /api/upload [post]
func (h *SessionHandler) HandleUpload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		SendAppError(c, apperrors.NewValidationError("file field is required", err))
		return
	}

	if !strings.HasSuffix(strings.ToLower(file.Filename), ".zip") {
		SendAppError(c, apperrors.NewValidationError("only .zip files are allowed", nil))
		return
	}
	if file.Size > h.maxUploadBytes {
		msg := fmt.Sprintf("file size exceeds maximum of %dMB", h.maxUploadBytes/(1024*1024))
		SendAppError(c, apperrors.NewPayloadTooLargeError(msg, nil))
		return
	}

	src, err := file.Open()
	if err != nil {
		SendAppError(c, apperrors.NewInternalError("opening upload", err))
		return
	}
	defer src.Close()

	// Size declared by multipart metadata is re-checked while reading.
	data, err := io.ReadAll(io.LimitReader(src, h.maxUploadBytes+1))
	if err != nil {
		SendAppError(c, apperrors.NewInternalError("reading upload", err))
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		msg := fmt.Sprintf("file size exceeds maximum of %dMB", h.maxUploadBytes/(1024*1024))
		SendAppError(c, apperrors.NewPayloadTooLargeError(msg, nil))
		return
	}

	session, err := h.db.CreateSession()
	if err != nil {
		SendAppError(c, apperrors.NewInternalError("creating session", err))
		return
	}

	go h.processor.Process(session.ID, data)

	SendJSONResponse(c, http.StatusAccepted, UploadResponse{
		SessionID: session.ID,
		Status:    database.StatusProcessing,
	})
}

// HandleStatus reports the processing state of a session
// @Summary Get session status
// @Tags sessions
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} StatusResponse
// @Failure 404 {object} ErrorResponse "Session not found"
// @Router /api/status/{session_id} [get]
func (h *SessionHandler) HandleStatus(c *gin.Context) {
	session, err := h.db.GetSession(c.Param("session_id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			SendAppError(c, apperrors.NewNotFoundError("Session not found", nil))
			return
		}
		SendAppError(c, apperrors.NewInternalError("loading session", err))
		return
	}

	SendJSONResponse(c, http.StatusOK, StatusResponse{
		SessionID:       session.ID,
		Status:          session.Status,
		ErrorMessage:    session.ErrorMessage,
		ProgressMessage: session.ProgressMessage,
	})
}

// HandleResults returns the extracted recommendations of a session
// @Summary Get session results
// @Tags sessions
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} ResultsResponse
// @Success 202 {object} PendingResponse "Processing not complete"
// @Failure 404 {object} ErrorResponse "Session or results not found"
// @Failure 410 {object} ErrorResponse "Results have expired"
// @Router /api/results/{session_id} [get]
func (h *SessionHandler) HandleResults(c *gin.Context) {
	result, status := h.loadResult(c)
	if result == nil {
		return
	}

	SendJSONResponse(c, status, ResultsResponse{
		SessionID:       result.SessionID,
		Recommendations: result.Recommendations,
		OpenAIEnhanced:  result.OpenAIEnhanced,
		CreatedAt:       result.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// HandleExport streams the stored result in a tabular format
// @Summary Export session results
// @Description Renders the stored recommendation set as json, csv, xlsx or markdown
// @Tags sessions
// @Produce json
// @Param session_id path string true "Session ID"
// @Param format query string false "Export format" Enums(json, csv, xlsx, markdown) default(json)
// @Success 200 {file} file "Exported file"
// @Failure 400 {object} ErrorResponse "Unknown format"
// @Failure 404 {object} ErrorResponse "Session or results not found"
// @Failure 410 {object} ErrorResponse "Results have expired"
// @Router /api/export/{session_id} [get]
func (h *SessionHandler) HandleExport(c *gin.Context) {
	result, _ := h.loadResult(c)
	if result == nil {
		return
	}

	format := export.Format(c.DefaultQuery("format", string(export.FormatJSON)))
	contentType, ok := exportContentTypes[format]
	if !ok {
		SendAppError(c, apperrors.NewValidationError(fmt.Sprintf("unknown export format: %s", format), nil))
		return
	}

	filename := fmt.Sprintf("recommendations-%s.%s", result.SessionID, exportExtensions[format])
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)

	if err := export.Write(c.Writer, format, result.Recommendations); err != nil {
		// Headers are already on the wire, the failure can only be logged.
		_ = c.Error(err)
	}
}

var exportContentTypes = map[export.Format]string{
	export.FormatJSON:     "application/json; charset=utf-8",
	export.FormatCSV:      "text/csv; charset=utf-8",
	export.FormatExcel:    "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	export.FormatMarkdown: "text/markdown; charset=utf-8",
}

var exportExtensions = map[export.Format]string{
	export.FormatJSON:     "json",
	export.FormatCSV:      "csv",
	export.FormatExcel:    "xlsx",
	export.FormatMarkdown: "md",
}

// loadResult resolves a session's stored result, writing the error
// response itself when the result is not servable: 404 for unknown
// sessions and missing completed results, 410 once the session or
// result expired, 202 while processing runs.
func (h *SessionHandler) loadResult(c *gin.Context) (*database.Result, int) {
	session, err := h.db.GetSession(c.Param("session_id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			SendAppError(c, apperrors.NewNotFoundError("Session not found", nil))
			return nil, 0
		}
		SendAppError(c, apperrors.NewInternalError("loading session", err))
		return nil, 0
	}

	now := time.Now()
	if session.ExpiresAt.Before(now) {
		SendAppError(c, apperrors.NewGoneError("Results have expired", nil))
		return nil, 0
	}

	result, err := h.db.GetResult(session.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			if session.Status == database.StatusCompleted {
				SendAppError(c, apperrors.NewNotFoundError("Results not found", nil))
				return nil, 0
			}
			SendJSONResponse(c, http.StatusAccepted, PendingResponse{
				SessionID: session.ID,
				Status:    session.Status,
				Message:   fmt.Sprintf("Processing not complete. Status: %s", session.Status),
			})
			return nil, 0
		}
		SendAppError(c, apperrors.NewInternalError("loading result", err))
		return nil, 0
	}

	if result.ExpiresAt.Before(now) {
		SendAppError(c, apperrors.NewGoneError("Results have expired", nil))
		return nil, 0
	}

	return result, http.StatusOK
}

// HandleHealth reports liveness
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /api/health [get]
func (h *SessionHandler) HandleHealth(c *gin.Context) {
	SendJSONResponse(c, http.StatusOK, HealthResponse{Status: "ok"})
}
