package handlers

import (
	"recserver/extractors"
)

// UploadResponse confirms an accepted upload.
type UploadResponse struct {
	SessionID string `json:"session_id" example:"6f1c2f0a-0b8e-4f6c-9a43-0f37ad41e4a9"`
	Status    string `json:"status" example:"processing"`
}

// StatusResponse reports the processing state of a session.
type StatusResponse struct {
	SessionID       string `json:"session_id"`
	Status          string `json:"status" example:"processing"`
	ErrorMessage    string `json:"error_message,omitempty"`
	ProgressMessage string `json:"progress_message,omitempty"`
}

// PendingResponse is returned when results are requested before
// processing finished.
type PendingResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// ResultsResponse carries the extracted recommendation set.
type ResultsResponse struct {
	SessionID       string                      `json:"session_id"`
	Recommendations []extractors.Recommendation `json:"recommendations"`
	OpenAIEnhanced  bool                        `json:"openai_enhanced"`
	CreatedAt       string                      `json:"created_at"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
