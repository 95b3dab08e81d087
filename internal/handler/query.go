package handler

import (
	"encoding/json"
	"net/http"

	"github.com/talk2sql/talk2sql/internal/agent"
	"github.com/talk2sql/talk2sql/internal/models"
)

// QueryHandler exposes the natural-language query pipeline.
type QueryHandler struct {
	pipeline *agent.Pipeline
}

func NewQueryHandler(pipeline *agent.Pipeline) *QueryHandler {
	return &QueryHandler{pipeline: pipeline}
}

// Query handles POST /api/v1/query. The response shape is identical for
// successes and pipeline rejections; only transport-level problems (bad
// JSON, out-of-bounds question) get an HTTP error status.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if msg := req.Validate(); msg != "" {
		models.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	outcome := h.pipeline.Handle(r.Context(), &req)
	models.WriteJSON(w, http.StatusOK, outcome)
}
