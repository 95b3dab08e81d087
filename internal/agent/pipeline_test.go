package agent_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/talk2sql/talk2sql/internal/agent"
	"github.com/talk2sql/talk2sql/internal/memory"
	"github.com/talk2sql/talk2sql/internal/models"
	"github.com/talk2sql/talk2sql/internal/security"
	"github.com/talk2sql/talk2sql/internal/service"
)

// ─── Fakes ────────────────────────────────────────────────────────────────────

type fakeCatalog struct {
	descriptors []models.SchemaDescriptor
	err         error
}

func (f *fakeCatalog) Descriptors(ctx context.Context) ([]models.SchemaDescriptor, error) {
	return f.descriptors, f.err
}

type fakeGenerator struct {
	sql     string
	err     error
	calls   int
	lastReq *agent.GroundedRequest
}

func (f *fakeGenerator) GenerateSQL(ctx context.Context, req *agent.GroundedRequest) (string, error) {
	f.calls++
	f.lastReq = req
	return f.sql, f.err
}

type fakeExecutor struct {
	result *service.QueryResult
	err    error
	calls  int
}

func (f *fakeExecutor) ExecuteQuery(ctx context.Context, sql string, timeout time.Duration) (*service.QueryResult, error) {
	f.calls++
	return f.result, f.err
}

func testDescriptors() []models.SchemaDescriptor {
	return []models.SchemaDescriptor{
		{
			Name:        "employees",
			Description: "Table: employees",
			Columns:     []string{"emp_id", "first_name", "dept_id"},
			ColumnNotes: map[string]string{"emp_id": "integer NOT NULL"},
		},
		{
			Name:        "departments",
			Description: "Table: departments",
			Columns:     []string{"dept_id", "dept_name"},
		},
	}
}

type fixture struct {
	pipeline  *agent.Pipeline
	generator *fakeGenerator
	executor  *fakeExecutor
	sessions  *memory.InMemorySessionStore
	profiles  memory.ProfileStore
}

func newFixture(gen *fakeGenerator, exec *fakeExecutor, profiles memory.ProfileStore) *fixture {
	sessions := memory.NewInMemorySessionStore()
	p := agent.NewPipeline(
		security.NewIntentGuard(nil),
		agent.NewAssembler(&fakeCatalog{descriptors: testDescriptors()}, 20, 500),
		gen,
		security.NewSQLValidator(),
		exec,
		nil,
		sessions,
		profiles,
		nil,
		agent.PipelineOptions{},
	)
	return &fixture{pipeline: p, generator: gen, executor: exec, sessions: sessions, profiles: profiles}
}

func okResult(rows int) *service.QueryResult {
	data := make([]map[string]interface{}, rows)
	for i := range data {
		data[i] = map[string]interface{}{"emp_id": i + 1}
	}
	return &service.QueryResult{
		Rows:            data,
		Columns:         []string{"emp_id"},
		RowCount:        rows,
		ExecutionTimeMs: 12,
	}
}

// ─── Happy path ───────────────────────────────────────────────────────────────

func TestPipelineSuccess(t *testing.T) {
	gen := &fakeGenerator{sql: "SELECT * FROM employees LIMIT 500"}
	exec := &fakeExecutor{result: okResult(2)}
	f := newFixture(gen, exec, nil)

	out := f.pipeline.Handle(context.Background(), &models.QueryRequest{
		UserID: "u1",
		Query:  "Show me all employees",
	})

	if out.Status != "success" {
		t.Fatalf("status = %q (stage %q, error %q), want success", out.Status, out.Stage, out.Error)
	}
	if out.SQL != gen.sql {
		t.Errorf("sql = %q, want %q", out.SQL, gen.sql)
	}
	if out.RowCount != 2 {
		t.Errorf("row_count = %d, want 2", out.RowCount)
	}
	if out.Explanation != "Found 2 matching results." {
		t.Errorf("explanation = %q", out.Explanation)
	}
	if out.PersonalizationUsed {
		t.Error("personalization_used = true without a profile store")
	}
	if out.RequestID == "" {
		t.Error("request_id is empty")
	}
	if exec.calls != 1 {
		t.Errorf("executor called %d times, want 1", exec.calls)
	}
}

func TestPipelineSummaryFallback(t *testing.T) {
	tests := []struct {
		rows int
		want string
	}{
		{0, "No data found matching your query."},
		{1, "Found 1 matching result."},
		{5, "Found 5 matching results."},
	}
	for _, tt := range tests {
		gen := &fakeGenerator{sql: "SELECT * FROM employees"}
		f := newFixture(gen, &fakeExecutor{result: okResult(tt.rows)}, nil)
		out := f.pipeline.Handle(context.Background(), &models.QueryRequest{UserID: "u1", Query: "list employees"})
		if out.Explanation != tt.want {
			t.Errorf("rows=%d: explanation = %q, want %q", tt.rows, out.Explanation, tt.want)
		}
	}
}

// ─── Stage failures ───────────────────────────────────────────────────────────

func TestPipelineRejectsOffTopicBeforeGeneration(t *testing.T) {
	gen := &fakeGenerator{sql: "SELECT 1"}
	exec := &fakeExecutor{result: okResult(1)}
	f := newFixture(gen, exec, nil)

	out := f.pipeline.Handle(context.Background(), &models.QueryRequest{
		UserID: "u1",
		Query:  "What's the weather today?",
	})

	if out.Status != "error" || out.Stage != string(agent.StageAdmission) {
		t.Fatalf("status = %q stage = %q, want error at admission", out.Status, out.Stage)
	}
	if out.Error != security.RejectionMessage {
		t.Errorf("error = %q, want the fixed rejection message", out.Error)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times after rejection, want 0", gen.calls)
	}
	if exec.calls != 0 {
		t.Errorf("executor called %d times after rejection, want 0", exec.calls)
	}
}

func TestPipelineGroundingFailure(t *testing.T) {
	gen := &fakeGenerator{sql: "SELECT 1"}
	p := agent.NewPipeline(
		security.NewIntentGuard(nil),
		agent.NewAssembler(&fakeCatalog{err: errors.New("connection refused")}, 20, 500),
		gen,
		security.NewSQLValidator(),
		&fakeExecutor{},
		nil, memory.NewInMemorySessionStore(), nil, nil,
		agent.PipelineOptions{},
	)

	out := p.Handle(context.Background(), &models.QueryRequest{UserID: "u1", Query: "show employees"})
	if out.Stage != string(agent.StageGrounding) {
		t.Fatalf("stage = %q, want grounding", out.Stage)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times after grounding failure, want 0", gen.calls)
	}
	if strings.Contains(out.Error, "connection refused") {
		t.Errorf("error leaks collaborator detail: %q", out.Error)
	}
}

func TestPipelineGenerationFailureIsSanitized(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"error", &fakeGenerator{err: errors.New("anthropic: 401 invalid x-api-key")}},
		{"empty output", &fakeGenerator{sql: ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{result: okResult(1)}
			f := newFixture(tt.gen, exec, nil)
			out := f.pipeline.Handle(context.Background(), &models.QueryRequest{UserID: "u1", Query: "show employees"})

			if out.Stage != string(agent.StageGeneration) {
				t.Fatalf("stage = %q, want generation", out.Stage)
			}
			if strings.Contains(out.Error, "x-api-key") {
				t.Errorf("error leaks collaborator detail: %q", out.Error)
			}
			if exec.calls != 0 {
				t.Errorf("executor called %d times, want 0", exec.calls)
			}
		})
	}
}

func TestPipelineBlocksUnsafeSQL(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"piggybacked drop", "SELECT * FROM employees; DROP TABLE employees;"},
		{"comment injection", "select dept_name from departments -- comment"},
		{"multiple statements", "SELECT 1; SELECT 2"},
		{"catalog probe", "SELECT * FROM pg_tables"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{sql: tt.sql}
			exec := &fakeExecutor{result: okResult(1)}
			f := newFixture(gen, exec, nil)

			out := f.pipeline.Handle(context.Background(), &models.QueryRequest{UserID: "u1", Query: "show employees"})

			if out.Status != "error" || out.Stage != string(agent.StageValidation) {
				t.Fatalf("status = %q stage = %q, want error at validation", out.Status, out.Stage)
			}
			if exec.calls != 0 {
				t.Errorf("executor called %d times for rejected SQL, want 0", exec.calls)
			}
			if !strings.Contains(out.Error, "safety checks") {
				t.Errorf("error = %q, want safety check message", out.Error)
			}
		})
	}
}

func TestPipelineExecutionErrorTruncated(t *testing.T) {
	longErr := errors.New(strings.Repeat("relation does not exist ", 20))
	gen := &fakeGenerator{sql: "SELECT * FROM employees"}
	f := newFixture(gen, &fakeExecutor{err: longErr}, nil)

	out := f.pipeline.Handle(context.Background(), &models.QueryRequest{UserID: "u1", Query: "show employees"})

	if out.Stage != string(agent.StageExecution) {
		t.Fatalf("stage = %q, want execution", out.Stage)
	}
	const prefix = "Query execution failed: "
	if !strings.HasPrefix(out.Error, prefix) {
		t.Fatalf("error = %q, want %q prefix", out.Error, prefix)
	}
	detail := strings.TrimPrefix(out.Error, prefix)
	if len(detail) > 203 { // 200-char cap plus ellipsis
		t.Errorf("collaborator detail length = %d, want <= 203", len(detail))
	}
}

// ─── Memory integration ───────────────────────────────────────────────────────

func TestPipelineRecordsSessionTurns(t *testing.T) {
	gen := &fakeGenerator{sql: "SELECT * FROM employees"}
	f := newFixture(gen, &fakeExecutor{result: okResult(1)}, nil)

	req := &models.QueryRequest{UserID: "u1", SessionID: "s1", Query: "show employees"}
	f.pipeline.Handle(context.Background(), req)

	turns := f.sessions.Get("s1", "u1").ContextTurns(0)
	if len(turns) != 2 {
		t.Fatalf("session has %d turns, want 2", len(turns))
	}
	if turns[0].Role != "user" || turns[1].Role != "assistant" {
		t.Errorf("turn roles = %q, %q", turns[0].Role, turns[1].Role)
	}

	// Prior turns reach the generator on the follow-up request.
	f.pipeline.Handle(context.Background(), req)
	if len(gen.lastReq.PriorTurns) == 0 {
		t.Error("follow-up request carried no prior turns")
	}
}

func TestPipelineFailedRequestLeavesNoTurns(t *testing.T) {
	gen := &fakeGenerator{sql: "DROP TABLE employees"}
	f := newFixture(gen, &fakeExecutor{}, nil)

	f.pipeline.Handle(context.Background(), &models.QueryRequest{UserID: "u1", SessionID: "s1", Query: "show employees"})

	if sess := f.sessions.Get("s1", "u1"); sess.TurnCount() != 0 {
		t.Errorf("failed request recorded %d turns, want 0", sess.TurnCount())
	}
}

func TestPipelinePersonalization(t *testing.T) {
	profiles := memory.NewInMemoryProfileStore()
	gen := &fakeGenerator{sql: "SELECT * FROM employees"}
	f := newFixture(gen, &fakeExecutor{result: okResult(1)}, profiles)

	// First query: a fresh profile carries no signal.
	out := f.pipeline.Handle(context.Background(), &models.QueryRequest{UserID: "u1", Query: "show employees"})
	if out.PersonalizationUsed {
		t.Error("first query marked personalized")
	}

	// The success was recorded, so the second query sees history.
	out = f.pipeline.Handle(context.Background(), &models.QueryRequest{UserID: "u1", Query: "show employees"})
	if !out.PersonalizationUsed {
		t.Error("second query not marked personalized")
	}
	if !strings.Contains(gen.lastReq.HintsText, "USER PREFERENCES") {
		t.Errorf("hints text = %q, want preferences block", gen.lastReq.HintsText)
	}

	profile, err := profiles.Get(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if profile.TotalQueries != 2 {
		t.Errorf("total_queries = %d, want 2", profile.TotalQueries)
	}
	if profile.DomainFocus["HR"] != 2 {
		t.Errorf("HR focus = %d, want 2", profile.DomainFocus["HR"])
	}
}
