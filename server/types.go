package server

import (
	"github.com/NextMind-AI/crm-go/inbox"
	"github.com/NextMind-AI/crm-go/openai"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SetActiveRequest selects the conversation shown in the inbox. An empty
// user_id clears the selection.
type SetActiveRequest struct {
	ClinicID string `json:"clinic_id"`
	UserID   string `json:"user_id"`
}

type ActiveResponse struct {
	Active string `json:"active"`
}

type StatusResponse struct {
	Conversations []string `json:"conversations"`
	Active        string   `json:"active"`
	AnyLoading    bool     `json:"any_loading"`
	Watched       []string `json:"watched"`
}

type PollResponse struct {
	Added    int            `json:"added"`
	Snapshot inbox.Snapshot `json:"snapshot"`
}

type WatchResponse struct {
	ConversationKey string `json:"conversation_key"`
	Watching        bool   `json:"watching"`
}

type SummaryResponse struct {
	ConversationKey string         `json:"conversation_key"`
	MessageCount    int            `json:"message_count"`
	Summary         openai.Summary `json:"summary"`
}

type ExportResponse struct {
	ConversationKey string `json:"conversation_key"`
	MessageCount    int    `json:"message_count"`
	URL             string `json:"url"`
}
