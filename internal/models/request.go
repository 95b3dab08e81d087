package models

import "strings"

// Question length bounds enforced before the pipeline runs.
const (
	MinQuestionLength = 1
	MaxQuestionLength = 2000
)

// QueryRequest for POST /api/v1/query (natural language in)
type QueryRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
	Query     string `json:"query"`
}

// Validate checks request bounds. Returns a user-facing message on failure,
// or empty string when the request is acceptable.
func (r *QueryRequest) Validate() string {
	q := strings.TrimSpace(r.Query)
	if len(q) < MinQuestionLength {
		return "query is required"
	}
	if len(q) > MaxQuestionLength {
		return "query too long (max 2000 characters)"
	}
	if r.UserID == "" {
		return "user_id is required"
	}
	return ""
}
