package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/talk2sql/talk2sql/internal/models"
	"github.com/talk2sql/talk2sql/internal/service"
)

const version = "1.0.0"

// HealthHandler handles GET /health with dependency checks.
type HealthHandler struct {
	db         *service.PostgresService
	llmEnabled bool
}

func NewHealthHandler(db *service.PostgresService, llmEnabled bool) *HealthHandler {
	return &HealthHandler{db: db, llmEnabled: llmEnabled}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"server": "ok"}
	overallStatus := "healthy"

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.db != nil {
		if err := h.db.TestConnection(ctx); err != nil {
			checks["postgres"] = "unavailable: " + err.Error()
			overallStatus = "degraded"
		} else {
			checks["postgres"] = "ok"
		}
	} else {
		checks["postgres"] = "disabled"
	}

	if h.llmEnabled {
		checks["llm"] = "configured"
	} else {
		checks["llm"] = "disabled"
	}

	statusCode := http.StatusOK
	if overallStatus == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	models.WriteJSON(w, statusCode, models.HealthResponse{
		Status:  overallStatus,
		Version: version,
		Checks:  checks,
	})
}
