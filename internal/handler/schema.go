package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/talk2sql/talk2sql/internal/models"
	"github.com/talk2sql/talk2sql/internal/service"
)

// SchemaHandler exposes the catalog for inspection and out-of-band
// re-ingestion.
type SchemaHandler struct {
	catalog *service.PostgresCatalog
}

func NewSchemaHandler(catalog *service.PostgresCatalog) *SchemaHandler {
	return &SchemaHandler{catalog: catalog}
}

// ListTables handles GET /api/v1/schema
func (h *SchemaHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	descriptors, err := h.catalog.Descriptors(r.Context())
	if err != nil {
		models.WriteError(w, http.StatusInternalServerError, "schema introspection failed")
		return
	}
	models.WriteJSON(w, http.StatusOK, models.TableResponse{
		Tables: descriptors,
		Count:  len(descriptors),
	})
}

// GetTable handles GET /api/v1/schema/{table_name}
func (h *SchemaHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table_name")
	descriptors, err := h.catalog.Descriptors(r.Context())
	if err != nil {
		models.WriteError(w, http.StatusInternalServerError, "schema introspection failed")
		return
	}
	for _, d := range descriptors {
		if d.Name == name {
			models.WriteJSON(w, http.StatusOK, d)
			return
		}
	}
	models.WriteError(w, http.StatusNotFound, "table not found: "+name)
}

// Refresh handles POST /api/v1/schema/refresh. Administrative re-ingestion;
// never part of the query path.
func (h *SchemaHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.catalog.Refresh()
	models.WriteJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}
