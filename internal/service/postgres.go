package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PostgresService wraps a pgx connection pool for read-only statement
// execution. It never generates SQL; callers must only hand it statements
// that have already passed validation.
type PostgresService struct {
	pool *pgxpool.Pool
}

// NewPostgresService connects a pool and verifies connectivity.
func NewPostgresService(ctx context.Context, databaseURL string) (*PostgresService, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresService{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresService) Close() {
	s.pool.Close()
}

// Pool exposes the underlying pool for collaborators that persist their own
// state (profile store, catalog).
func (s *PostgresService) Pool() *pgxpool.Pool {
	return s.pool
}

// TestConnection verifies database connectivity.
func (s *PostgresService) TestConnection(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// QueryResult holds the structured outcome of one executed statement.
type QueryResult struct {
	Rows            []map[string]interface{}
	Columns         []string
	RowCount        int
	ExecutionTimeMs int64
}

// ExecuteQuery runs a validated statement inside a read-only transaction
// and returns rows, column names, row count and elapsed time. The read-only
// transaction is a second line of defense behind the validator.
func (s *PostgresService) ExecuteQuery(ctx context.Context, sql string, timeout time.Duration) (*QueryResult, error) {
	qCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	tx, err := s.pool.BeginTx(qCtx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin read-only tx: %w", err)
	}
	defer tx.Rollback(context.Background())

	rows, err := tx.Query(qCtx, sql)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = string(f.Name)
	}

	var data []map[string]interface{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	if err := tx.Commit(qCtx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	elapsed := time.Since(start)
	if data == nil {
		data = []map[string]interface{}{}
	}

	log.Debug().
		Int("rows", len(data)).
		Dur("elapsed", elapsed).
		Msg("query executed")

	return &QueryResult{
		Rows:            data,
		Columns:         columns,
		RowCount:        len(data),
		ExecutionTimeMs: elapsed.Milliseconds(),
	}, nil
}

// normalizeValue converts pgx-native values into JSON-friendly ones.
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case [16]byte:
		return fmt.Sprintf("%02x%02x%02x%02x-%02x%02x-%02x%02x-%02x%02x-%02x%02x%02x%02x%02x%02x",
			val[0], val[1], val[2], val[3], val[4], val[5], val[6], val[7],
			val[8], val[9], val[10], val[11], val[12], val[13], val[14], val[15])
	case []byte:
		return fmt.Sprintf("\\x%x", val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return v
	}
}
