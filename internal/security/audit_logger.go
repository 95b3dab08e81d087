package security

import (
	"crypto/sha256"
	"fmt"

	"github.com/rs/zerolog/log"
)

// AuditLogger records pipeline events with hashed identifiers so raw
// questions and SQL never land in the logs verbatim.
type AuditLogger struct {
	enabled bool
}

func NewAuditLogger(enabled bool) *AuditLogger {
	return &AuditLogger{enabled: enabled}
}

// LogPipeline records one completed pipeline run, successful or not.
func (a *AuditLogger) LogPipeline(
	requestID, userID, question, sql, stage string,
	executionTimeMs int64,
	rowCount int,
	success bool,
	errMsg string,
) {
	if !a.enabled {
		return
	}
	sqlHash := ""
	if sql != "" {
		sqlHash = hashStr(sql)[:16]
	}

	evt := log.Info().
		Str("event", "pipeline_audit").
		Str("request_id", requestID).
		Str("user_hash", hashStr(userID)[:16]).
		Str("question_hash", hashStr(question)[:16]).
		Str("sql_hash", sqlHash).
		Int64("execution_time_ms", executionTimeMs).
		Int("row_count", rowCount).
		Bool("success", success)

	if stage != "" {
		evt = evt.Str("stage", stage)
	}
	if errMsg != "" {
		evt = evt.Str("error", errMsg)
	}
	evt.Msg("audit")
}

// LogValidationFailure records a safety rejection. These are expected
// outcomes, not bugs, and are logged at info level.
func (a *AuditLogger) LogValidationFailure(requestID string, kind FailureKind, sql string) {
	if !a.enabled {
		return
	}
	log.Info().
		Str("event", "validation_audit").
		Str("request_id", requestID).
		Str("failure_kind", string(kind)).
		Str("sql_hash", hashStr(sql)[:16]).
		Msg("validation rejected")
}

func hashStr(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}
