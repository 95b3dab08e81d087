package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/talk2sql/talk2sql/internal/memory"
	"github.com/talk2sql/talk2sql/internal/models"
	"github.com/talk2sql/talk2sql/internal/security"
	"github.com/talk2sql/talk2sql/internal/service"
)

// Stage names a pipeline stage for stage-tagged failure outcomes.
type Stage string

const (
	StageAdmission  Stage = "admission"
	StageGrounding  Stage = "grounding"
	StageGeneration Stage = "generation"
	StageValidation Stage = "validation"
	StageExecution  Stage = "execution"
)

// collaboratorErrorLimit bounds how much raw collaborator error text may
// surface to the caller.
const collaboratorErrorLimit = 200

// Executor runs a validated statement. Implemented by
// service.PostgresService; faked in tests.
type Executor interface {
	ExecuteQuery(ctx context.Context, sql string, timeout time.Duration) (*service.QueryResult, error)
}

// Pipeline sequences admission, grounding, generation, validation,
// execution and summarization for one request. Stages run strictly in
// order; the first failure terminates the request with a stage-tagged
// outcome. No stage trusts a later one to catch its omission.
type Pipeline struct {
	guard     *security.IntentGuard
	assembler *Assembler
	generator SQLGenerator
	validator *security.SQLValidator
	executor  Executor
	explainer Explainer // optional
	sessions  memory.SessionStore
	profiles  memory.ProfileStore
	audit     *security.AuditLogger

	queryTimeout    time.Duration
	sessionMaxTurns int
	contextTurns    int
}

// PipelineOptions carries the tunables for a Pipeline.
type PipelineOptions struct {
	QueryTimeout    time.Duration
	SessionMaxTurns int
	ContextTurns    int
}

// NewPipeline wires a pipeline from explicitly constructed collaborators.
// explainer may be nil; the deterministic row-count summary is used then.
func NewPipeline(
	guard *security.IntentGuard,
	assembler *Assembler,
	generator SQLGenerator,
	validator *security.SQLValidator,
	executor Executor,
	explainer Explainer,
	sessions memory.SessionStore,
	profiles memory.ProfileStore,
	audit *security.AuditLogger,
	opts PipelineOptions,
) *Pipeline {
	if opts.QueryTimeout == 0 {
		opts.QueryTimeout = 60 * time.Second
	}
	if opts.SessionMaxTurns == 0 {
		opts.SessionMaxTurns = 20
	}
	if opts.ContextTurns == 0 {
		opts.ContextTurns = 6
	}
	return &Pipeline{
		guard:           guard,
		assembler:       assembler,
		generator:       generator,
		validator:       validator,
		executor:        executor,
		explainer:       explainer,
		sessions:        sessions,
		profiles:        profiles,
		audit:           audit,
		queryTimeout:    opts.QueryTimeout,
		sessionMaxTurns: opts.SessionMaxTurns,
		contextTurns:    opts.ContextTurns,
	}
}

// Handle runs the full pipeline for one request. It never panics past its
// boundary and never returns a nil response.
func (p *Pipeline) Handle(ctx context.Context, req *models.QueryRequest) *models.QueryResponse {
	requestID := uuid.NewString()
	start := time.Now()
	question := strings.TrimSpace(req.Query)

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	log.Info().
		Str("request_id", requestID).
		Str("question_preview", preview(question, 100)).
		Msg("new query")

	// ── Stage 1: admission ──────────────────────────────────────────────
	verdict := p.guard.Admit(ctx, question)
	if !verdict.Accepted {
		log.Info().Str("request_id", requestID).Msg("out-of-domain query rejected")
		out := p.failure(requestID, StageAdmission, "", verdict.RejectionMessage)
		out.Explanation = "Please rephrase your query to ask about employees, inventory, production, or sales."
		p.auditOutcome(requestID, req.UserID, question, out, start)
		return out
	}

	// Personalization and session context are advisory; failures here
	// degrade to an un-hinted request instead of rejecting.
	hints, personalized := p.loadHints(ctx, req.UserID)
	var priorTurns []memory.ConversationTurn
	var session *memory.Session
	if p.sessions != nil {
		session = p.sessions.Get(sessionID, req.UserID)
		priorTurns = session.ContextTurns(p.contextTurns)
	}

	// ── Stage 2: grounding ──────────────────────────────────────────────
	grounded, err := p.assembler.Ground(ctx, question, hints, priorTurns)
	if err != nil {
		log.Warn().Err(err).Str("request_id", requestID).Msg("grounding failed")
		out := p.failure(requestID, StageGrounding, "",
			"Could not find relevant database tables for your query. Please rephrase.")
		out.Explanation = "Try asking about specific topics like employees, attendance, inventory, production, or sales."
		p.auditOutcome(requestID, req.UserID, question, out, start)
		return out
	}

	// ── Stage 3: generation ─────────────────────────────────────────────
	sql, err := p.generator.GenerateSQL(ctx, grounded)
	if err != nil || sql == "" {
		if err != nil {
			log.Warn().Err(err).Str("request_id", requestID).Msg("sql generation failed")
		} else {
			log.Warn().Str("request_id", requestID).Msg("sql generation returned empty output")
		}
		out := p.failure(requestID, StageGeneration, "",
			"SQL generation failed. Please rephrase your question.")
		out.Explanation = "Try to be more specific about what data you want to see."
		p.auditOutcome(requestID, req.UserID, question, out, start)
		return out
	}

	// ── Stage 4: validation ─────────────────────────────────────────────
	vr := p.validator.Validate(sql)
	if !vr.Accepted {
		log.Warn().
			Str("request_id", requestID).
			Str("failure_kind", string(vr.Kind)).
			Msg("sql validation failed")
		if p.audit != nil {
			p.audit.LogValidationFailure(requestID, vr.Kind, sql)
		}
		out := p.failure(requestID, StageValidation, sql,
			"Generated SQL failed safety checks: "+vr.Message)
		p.auditOutcome(requestID, req.UserID, question, out, start)
		return out
	}

	// ── Stage 5: execution ──────────────────────────────────────────────
	result, err := p.executor.ExecuteQuery(ctx, sql, p.queryTimeout)
	if err != nil {
		log.Error().Err(err).Str("request_id", requestID).Msg("sql execution failed")
		out := p.failure(requestID, StageExecution, sql,
			"Query execution failed: "+truncate(err.Error(), collaboratorErrorLimit))
		out.Explanation = "There was an error executing your query. Please try rephrasing."
		p.auditOutcome(requestID, req.UserID, question, out, start)
		return out
	}

	// ── Stage 6: summarization ──────────────────────────────────────────
	explanation := p.summarize(ctx, question, sql, result)

	p.rememberTurn(ctx, session, req.UserID, question, sql)

	out := &models.QueryResponse{
		RequestID:           requestID,
		SQL:                 sql,
		Data:                result.Rows,
		Columns:             result.Columns,
		RowCount:            result.RowCount,
		ExecutionTime:       float64(result.ExecutionTimeMs) / 1000.0,
		Explanation:         explanation,
		PersonalizationUsed: personalized,
		Status:              "success",
	}

	log.Info().
		Str("request_id", requestID).
		Int("rows", result.RowCount).
		Dur("total", time.Since(start)).
		Msg("query completed")
	p.auditOutcome(requestID, req.UserID, question, out, start)
	return out
}

func (p *Pipeline) loadHints(ctx context.Context, userID string) (memory.Hints, bool) {
	if p.profiles == nil {
		return memory.Hints{}, false
	}
	profile, err := p.profiles.Get(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Msg("profile load failed; continuing without hints")
		return memory.Hints{}, false
	}
	hints := memory.BuildHints(profile)
	return hints, !hints.Empty()
}

func (p *Pipeline) summarize(ctx context.Context, question, sql string, result *service.QueryResult) string {
	if p.explainer != nil {
		explanation, err := p.explainer.Explain(ctx, question, sql, result.RowCount, result.Columns)
		if err == nil && explanation != "" {
			return explanation
		}
		if err != nil {
			log.Warn().Err(err).Msg("explanation call failed; using summary fallback")
		}
	}

	switch result.RowCount {
	case 0:
		return "No data found matching your query."
	case 1:
		return "Found 1 matching result."
	default:
		return fmt.Sprintf("Found %d matching results.", result.RowCount)
	}
}

func (p *Pipeline) rememberTurn(ctx context.Context, session *memory.Session, userID, question, sql string) {
	if session != nil {
		session.AddTurn("user", question, "", p.sessionMaxTurns)
		session.AddTurn("assistant", sql, sql, p.sessionMaxTurns)
		p.sessions.Save(session)
	}
	if p.profiles != nil {
		profile, err := p.profiles.Get(ctx, userID)
		if err == nil {
			memory.RecordQuery(&profile, question)
			if err := p.profiles.Upsert(ctx, userID, profile); err != nil {
				log.Warn().Err(err).Msg("profile update failed")
			}
		}
	}
}

func (p *Pipeline) failure(requestID string, stage Stage, sql, message string) *models.QueryResponse {
	return &models.QueryResponse{
		RequestID: requestID,
		SQL:       sql,
		Data:      []map[string]interface{}{},
		Columns:   []string{},
		Status:    "error",
		Stage:     string(stage),
		Error:     message,
	}
}

func (p *Pipeline) auditOutcome(requestID, userID, question string, out *models.QueryResponse, start time.Time) {
	if p.audit == nil {
		return
	}
	p.audit.LogPipeline(
		requestID, userID, question, out.SQL, out.Stage,
		time.Since(start).Milliseconds(), out.RowCount,
		out.Status == "success", out.Error,
	)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
