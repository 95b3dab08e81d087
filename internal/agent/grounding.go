package agent

import (
	"context"
	"fmt"

	"github.com/talk2sql/talk2sql/internal/memory"
	"github.com/talk2sql/talk2sql/internal/models"
	"github.com/talk2sql/talk2sql/internal/service"
)

// GroundedRequest is the exact, bounded payload handed to the generator:
// the question, the schema context it is allowed to reference, the rule set
// it must obey, and advisory personalization/session context. Immutable
// once constructed.
type GroundedRequest struct {
	Question    string
	Descriptors []models.SchemaDescriptor
	SchemaText  string
	RulesText   string
	HintsText   string
	PriorTurns  []memory.ConversationTurn
}

// rulesTemplate is the strict rule set injected into every generation
// prompt. These rules are advisory constraints on the generator;
// enforcement is exclusively the validator's job.
const rulesTemplate = `=== STRICT SQL RULES (MUST follow ALL of these) ===

1. ONLY generate PostgreSQL-compatible SELECT queries.
2. NEVER generate DROP, ALTER, TRUNCATE, DELETE, INSERT, UPDATE, CREATE,
   GRANT, REVOKE, EXECUTE, or CALL statements.
3. ONLY reference tables and columns listed in the AVAILABLE SCHEMA section.
   Do NOT invent or hallucinate any table or column names.
4. Use EXPLICIT JOIN syntax (INNER JOIN, LEFT JOIN, etc.).
   NEVER use implicit comma-joins (e.g. FROM a, b WHERE a.id = b.id).
5. Always qualify column names with table aliases when two or more tables
   are involved (e.g. e.emp_id, d.dept_name).
6. Use standard PostgreSQL functions and date/time handling:
   CURRENT_DATE, CURRENT_TIMESTAMP, INTERVAL, EXTRACT, DATE_TRUNC,
   and the aggregates SUM, COUNT, AVG, MIN, MAX.
7. For text comparisons, prefer ILIKE for case-insensitive matching.
8. Limit result sets to a maximum of %d rows using LIMIT unless the user
   explicitly asks for all rows.
9. Use meaningful column aliases (AS) for computed or aggregated columns.
10. When the user asks for "today", use CURRENT_DATE.
    When the user asks for "this month", use DATE_TRUNC('month', CURRENT_DATE).
    When the user asks for "this year", use DATE_TRUNC('year', CURRENT_DATE).
11. Read-only environment constraints:
    - Do NOT use schema-qualified names (no "public." prefix).
    - Do NOT use a RETURNING clause.
    - Do NOT use advisory locks or NOTIFY/LISTEN.
12. Output ONLY the raw SQL query. No markdown fences, no backticks,
    no explanations, no comments, no trailing semicolons.
13. If the question is ambiguous, make a reasonable assumption and
    generate the most likely intended query.
14. For hierarchical data (manager_id in employees), use self-joins:
    e.g. JOIN employees m ON e.manager_id = m.emp_id

=== END SQL RULES ===`

// Assembler binds a question to its schema context and generation rules.
type Assembler struct {
	catalog   service.Catalog
	maxTables int
	rowLimit  int
}

func NewAssembler(catalog service.Catalog, maxTables, rowLimit int) *Assembler {
	return &Assembler{catalog: catalog, maxTables: maxTables, rowLimit: rowLimit}
}

// Ground builds the GroundedRequest for one question. The descriptor set is
// the full catalog capped at maxTables; similarity ranking is an
// optimization, not required for correctness.
func (a *Assembler) Ground(
	ctx context.Context,
	question string,
	hints memory.Hints,
	turns []memory.ConversationTurn,
) (*GroundedRequest, error) {
	descriptors, err := a.catalog.Descriptors(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup: %w", err)
	}
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("no schema descriptors available")
	}
	if a.maxTables > 0 && len(descriptors) > a.maxTables {
		descriptors = descriptors[:a.maxTables]
	}

	return &GroundedRequest{
		Question:    question,
		Descriptors: descriptors,
		SchemaText:  service.FormatDescriptors(descriptors),
		RulesText:   fmt.Sprintf(rulesTemplate, a.rowLimit),
		HintsText:   memory.FormatHints(hints),
		PriorTurns:  turns,
	}, nil
}
