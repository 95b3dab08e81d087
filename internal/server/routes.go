package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/talk2sql/talk2sql/internal/agent"
	"github.com/talk2sql/talk2sql/internal/handler"
	"github.com/talk2sql/talk2sql/internal/memory"
	"github.com/talk2sql/talk2sql/internal/middleware"
	"github.com/talk2sql/talk2sql/internal/models"
	"github.com/talk2sql/talk2sql/internal/security"
	"github.com/talk2sql/talk2sql/internal/service"
)

// setupRoutes constructs every collaborator explicitly and injects it into
// the pipeline at construction time; nothing is lazily initialized module
// state. Returns (router, db, error) so db can be closed on shutdown.
func (s *Server) setupRoutes(ctx context.Context) (http.Handler, *service.PostgresService, error) {
	cfg := s.cfg

	// ─── Database ───────────────────────────────────────────────────────────────
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := service.NewPostgresService(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres service: %w", err)
	}

	catalog := service.NewPostgresCatalog(db.Pool())

	// ─── Memory ─────────────────────────────────────────────────────────────────
	sessions := memory.NewInMemorySessionStore()

	var profiles memory.ProfileStore
	if cfg.EnablePersonalize {
		pgProfiles, err := memory.NewPostgresProfileStore(ctx, db.Pool())
		if err != nil {
			log.Warn().Err(err).Msg("profile store unavailable - personalization disabled")
		} else {
			profiles = pgProfiles
		}
	}

	// ─── LLM collaborator ───────────────────────────────────────────────────────
	var llm *agent.LLM
	if cfg.AnthropicAPIKey != "" {
		llm = agent.NewLLM(cfg.AnthropicAPIKey, cfg.Model, cfg.AnthropicBaseURL)
	} else {
		log.Warn().Msg("ANTHROPIC_API_KEY not set - /api/v1/query will return 503")
	}

	// ─── Pipeline ───────────────────────────────────────────────────────────────
	var classifier security.Classifier
	var generator agent.SQLGenerator
	var explainer agent.Explainer
	if llm != nil {
		classifier = llm
		generator = llm
		if cfg.EnableExplanations {
			explainer = llm
		}
	}

	guard := security.NewIntentGuard(classifier)
	validator := security.NewSQLValidator()
	audit := security.NewAuditLogger(cfg.EnableAuditLogging)
	assembler := agent.NewAssembler(catalog, cfg.MaxSchemaTables, cfg.RowLimit)

	var pipeline *agent.Pipeline
	if generator != nil {
		pipeline = agent.NewPipeline(
			guard, assembler, generator, validator, db, explainer,
			sessions, profiles, audit,
			agent.PipelineOptions{
				QueryTimeout:    time.Duration(cfg.QueryTimeoutSeconds) * time.Second,
				SessionMaxTurns: cfg.SessionMaxTurns,
				ContextTurns:    cfg.ContextTurns,
			},
		)
	}

	log.Info().
		Bool("llm_enabled", llm != nil).
		Bool("personalization", profiles != nil).
		Bool("explanations", explainer != nil).
		Bool("auth_enabled", cfg.EnableAuth && len(cfg.APIKeys) > 0).
		Bool("audit_logging", cfg.EnableAuditLogging).
		Msg("service configuration")

	if cfg.EnableAuth && len(cfg.APIKeys) == 0 {
		log.Warn().Msg("WARNING: auth enabled but no API keys configured - all API requests will be rejected")
	}

	// ─── Handlers ───────────────────────────────────────────────────────────────
	healthH := handler.NewHealthHandler(db, llm != nil)
	schemaH := handler.NewSchemaHandler(catalog)
	memoryH := handler.NewMemoryHandler(sessions, profiles)

	var queryH *handler.QueryHandler
	if pipeline != nil {
		queryH = handler.NewQueryHandler(pipeline)
	}

	// ─── Router ─────────────────────────────────────────────────────────────────
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	r.Use(chiMiddleware.RealIP)

	// Public routes
	r.Get("/health", healthH.Health)
	r.Get("/", healthH.Health)

	apiMiddleware := []func(http.Handler) http.Handler{
		middleware.RateLimit(cfg.RateLimitPerMinute),
	}
	if cfg.EnableAuth && len(cfg.APIKeys) > 0 {
		apiMiddleware = append(apiMiddleware, middleware.Auth(cfg.APIKeys, cfg.APIKeyHeader))
	}

	r.Group(func(r chi.Router) {
		for _, m := range apiMiddleware {
			r.Use(m)
		}

		r.Route(cfg.APIPrefix, func(r chi.Router) {
			if queryH != nil {
				r.Post("/query", queryH.Query)
			} else {
				r.Post("/query", unavailable("LLM is not configured"))
			}

			r.Get("/schema", schemaH.ListTables)
			r.Get("/schema/{table_name}", schemaH.GetTable)
			r.Post("/schema/refresh", schemaH.Refresh)

			r.Delete("/sessions/{session_id}", memoryH.DeleteSession)
			if profiles != nil {
				r.Get("/profiles/{user_id}", memoryH.GetProfile)
				r.Delete("/profiles/{user_id}", memoryH.DeleteProfile)
			}
		})
	})

	return r, db, nil
}

func unavailable(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		models.WriteError(w, http.StatusServiceUnavailable, message)
	}
}
