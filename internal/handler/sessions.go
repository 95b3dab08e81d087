package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/talk2sql/talk2sql/internal/memory"
	"github.com/talk2sql/talk2sql/internal/models"
)

// MemoryHandler exposes session reset and profile inspection.
type MemoryHandler struct {
	sessions memory.SessionStore
	profiles memory.ProfileStore
}

func NewMemoryHandler(sessions memory.SessionStore, profiles memory.ProfileStore) *MemoryHandler {
	return &MemoryHandler{sessions: sessions, profiles: profiles}
}

// DeleteSession handles DELETE /api/v1/sessions/{session_id}
func (h *MemoryHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	h.sessions.Delete(sessionID)
	models.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GetProfile handles GET /api/v1/profiles/{user_id}
func (h *MemoryHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	profile, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		models.WriteError(w, http.StatusInternalServerError, "profile lookup failed")
		return
	}
	models.WriteJSON(w, http.StatusOK, profile)
}

// DeleteProfile handles DELETE /api/v1/profiles/{user_id}
func (h *MemoryHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if err := h.profiles.Delete(r.Context(), userID); err != nil {
		models.WriteError(w, http.StatusInternalServerError, "profile delete failed")
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
