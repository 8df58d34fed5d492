package http

import "github.com/fyrsmithlabs/frontdesk/internal/callsession"

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	PendingHelp int    `json:"pendingHelpRequests"`
}

// AskRequest is the request body for POST /api/v1/questions.
type AskRequest struct {
	Question  string `json:"question"`
	CallerID  string `json:"callerId"`
	SessionID string `json:"sessionId,omitempty"`
}

// RespondRequest is the request body for POST /api/v1/help-requests/:id/respond.
type RespondRequest struct {
	Response string `json:"response"`
}

// KnowledgeRequest is the request body for POST /api/v1/knowledge.
type KnowledgeRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category,omitempty"`
}

// DeleteResponse reports whether a soft delete changed anything.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// StartCallRequest is the request body for POST /api/v1/calls.
type StartCallRequest struct {
	CallerID   string `json:"callerId"`
	CallerName string `json:"callerName,omitempty"`
}

// TranscriptRequest is the request body for POST /api/v1/calls/:sessionId/transcript.
type TranscriptRequest struct {
	Speaker callsession.Speaker `json:"speaker"`
	Message string              `json:"message"`
}
