package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"
)

// SQLGenerator produces a candidate statement from a grounded request. The
// output is untrusted regardless of success.
type SQLGenerator interface {
	GenerateSQL(ctx context.Context, req *GroundedRequest) (string, error)
}

// Explainer turns an execution result into a short narrative summary.
type Explainer interface {
	Explain(ctx context.Context, question, sql string, rowCount int, columns []string) (string, error)
}

const classifySystemPrompt = `You are a strict classifier. Given a user query, decide if it is related
to ANY of the following business database domains:

- employees, departments, salaries, designations, managers
- attendance, check-in/out, hours worked
- leaves (sick, casual, annual, maternity)
- suppliers, raw materials, inventory, stock levels
- products, production orders, manufacturing
- sales orders, revenue, customers

Reply with EXACTLY one word: "yes" or "no".
Do NOT explain. Do NOT add punctuation.`

const explainSystemPrompt = `You are a concise data analyst assistant. Given a user's question, the SQL
query that was run, and the result summary, write a SHORT (1-3 sentences)
natural-language explanation of what the results show. Do not repeat the
SQL. Do not use markdown. Be factual and brief.`

// LLM wraps the Anthropic SDK for the three collaborator roles the pipeline
// needs: SQL generation, admission escalation and result explanation.
type LLM struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

// NewLLM creates a client backed by Anthropic Claude or a compatible
// provider behind a custom base URL.
func NewLLM(apiKey, model, baseURL string) *LLM {
	if model == "" {
		model = "claude-sonnet-4-6"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &LLM{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: 1024,
	}
}

// GenerateSQL runs one generation call. The returned text is cleaned of
// fences and terminators but remains untrusted until validated.
func (l *LLM) GenerateSQL(ctx context.Context, req *GroundedRequest) (string, error) {
	system := buildGenerationPrompt(req)

	messages := make([]anthropic.MessageParam, 0, len(req.PriorTurns)+1)
	for _, turn := range req.PriorTurns {
		block := anthropic.NewTextBlock(turn.Content)
		if turn.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Question)))

	text, err := l.complete(ctx, system, messages, l.maxTokens)
	if err != nil {
		return "", fmt.Errorf("generation call: %w", err)
	}

	sql := CleanSQL(text)
	log.Debug().Str("sql_preview", preview(sql, 120)).Msg("sql generated")
	return sql, nil
}

// Classify asks for a binary yes/no admission decision with a strict reply
// contract: anything not beginning with "yes" is a no.
func (l *LLM) Classify(ctx context.Context, question string) (bool, error) {
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(question)),
	}
	text, err := l.complete(ctx, classifySystemPrompt, messages, 4)
	if err != nil {
		return false, fmt.Errorf("classification call: %w", err)
	}
	reply := strings.ToLower(strings.TrimSpace(text))
	return strings.HasPrefix(reply, "yes"), nil
}

// Explain produces a short narrative summary of an execution result.
func (l *LLM) Explain(ctx context.Context, question, sql string, rowCount int, columns []string) (string, error) {
	user := fmt.Sprintf(
		"Question: %s\nSQL: %s\nResult: %d rows returned with columns: %s",
		question, sql, rowCount, strings.Join(columns, ", "),
	)
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
	}
	text, err := l.complete(ctx, explainSystemPrompt, messages, 200)
	if err != nil {
		return "", fmt.Errorf("explanation call: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (l *LLM) complete(ctx context.Context, system string, messages []anthropic.MessageParam, maxTokens int) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.F(anthropic.Model(l.model)),
		MaxTokens:   anthropic.F(int64(maxTokens)),
		Messages:    anthropic.F(messages),
		Temperature: anthropic.F(0.0),
	}
	if system != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(system),
		})
	}

	resp, err := l.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var text string
	for _, block := range resp.Content {
		if b, ok := block.AsUnion().(anthropic.TextBlock); ok {
			text += b.Text
		}
	}
	return text, nil
}

func buildGenerationPrompt(req *GroundedRequest) string {
	var sb strings.Builder
	sb.WriteString("You are an expert PostgreSQL SQL generator for a garment manufacturing ERP system.\n\n")
	sb.WriteString(req.RulesText)
	sb.WriteString("\n\n=== AVAILABLE SCHEMA (ONLY these tables/columns exist) ===\n")
	sb.WriteString(req.SchemaText)
	sb.WriteString("\n=== END SCHEMA ===\n")
	if req.HintsText != "" {
		sb.WriteString("\n" + req.HintsText + "\n")
	}
	sb.WriteString("\nTASK:\nGiven the user's natural-language question, generate a SINGLE valid PostgreSQL\nSELECT query. Your response must contain ONLY the SQL - no markdown fences,\nno explanations, no comments, no semicolons at the end.")
	return sb.String()
}

func preview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
