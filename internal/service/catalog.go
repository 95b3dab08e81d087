package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/talk2sql/talk2sql/internal/models"
)

const catalogCacheTTL = 5 * time.Minute

// Catalog is the read-only lookup of table descriptors bound to each
// request. Assumed stable within a process lifetime; Refresh is an
// out-of-band administrative operation.
type Catalog interface {
	Descriptors(ctx context.Context) ([]models.SchemaDescriptor, error)
}

// PostgresCatalog introspects information_schema into SchemaDescriptors.
// Results are cached with a TTL; concurrent cache misses share one
// introspection via singleflight.
type PostgresCatalog struct {
	pool *pgxpool.Pool

	mu        sync.RWMutex
	cached    []models.SchemaDescriptor
	expiresAt time.Time
	sf        singleflight.Group
}

func NewPostgresCatalog(pool *pgxpool.Pool) *PostgresCatalog {
	return &PostgresCatalog{pool: pool}
}

// Descriptors returns the full ordered descriptor set, from cache when
// fresh.
func (c *PostgresCatalog) Descriptors(ctx context.Context) ([]models.SchemaDescriptor, error) {
	c.mu.RLock()
	if c.cached != nil && time.Now().Before(c.expiresAt) {
		defer c.mu.RUnlock()
		return c.cached, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.sf.Do("descriptors", func() (interface{}, error) {
		// Another goroutine may have populated the cache while we waited.
		c.mu.RLock()
		if c.cached != nil && time.Now().Before(c.expiresAt) {
			defer c.mu.RUnlock()
			return c.cached, nil
		}
		c.mu.RUnlock()

		descriptors, err := c.introspect(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cached = descriptors
		c.expiresAt = time.Now().Add(catalogCacheTTL)
		c.mu.Unlock()

		log.Info().Int("tables", len(descriptors)).Msg("schema catalog loaded")
		return descriptors, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.SchemaDescriptor), nil
}

// Refresh drops the cache so the next lookup re-introspects. Administrative
// operation; never part of the request path.
func (c *PostgresCatalog) Refresh() {
	c.mu.Lock()
	c.cached = nil
	c.expiresAt = time.Time{}
	c.mu.Unlock()
	log.Info().Msg("schema catalog cache invalidated")
}

const listTablesSQL = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = 'public'
  AND table_type = 'BASE TABLE'
ORDER BY table_name`

const listColumnsSQL = `
SELECT column_name, data_type, is_nullable, column_default
FROM information_schema.columns
WHERE table_schema = 'public'
  AND table_name = $1
ORDER BY ordinal_position`

const listForeignKeysSQL = `
SELECT kcu.table_name, kcu.column_name, ccu.table_name, ccu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name
JOIN information_schema.constraint_column_usage ccu
  ON tc.constraint_name = ccu.constraint_name
WHERE tc.table_schema = 'public'
  AND tc.constraint_type = 'FOREIGN KEY'
ORDER BY kcu.table_name, kcu.column_name`

func (c *PostgresCatalog) introspect(ctx context.Context) ([]models.SchemaDescriptor, error) {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, listTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	relationships, err := c.loadForeignKeys(ctx, conn)
	if err != nil {
		// Relationships are enrichment, not a hard requirement.
		log.Warn().Err(err).Msg("foreign key introspection failed")
		relationships = map[string][]string{}
	}

	descriptors := make([]models.SchemaDescriptor, 0, len(tables))
	for _, table := range tables {
		d, err := c.describeTable(ctx, conn, table)
		if err != nil {
			return nil, err
		}
		d.Relationships = relationships[table]
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

func (c *PostgresCatalog) describeTable(ctx context.Context, conn *pgxpool.Conn, table string) (models.SchemaDescriptor, error) {
	rows, err := conn.Query(ctx, listColumnsSQL, table)
	if err != nil {
		return models.SchemaDescriptor{}, fmt.Errorf("list columns for %q: %w", table, err)
	}
	defer rows.Close()

	d := models.SchemaDescriptor{
		Name:        table,
		Description: "Table: " + table,
		ColumnNotes: make(map[string]string),
	}

	for rows.Next() {
		var name, dataType, nullable string
		var colDefault *string
		if err := rows.Scan(&name, &dataType, &nullable, &colDefault); err != nil {
			return models.SchemaDescriptor{}, fmt.Errorf("scan column for %q: %w", table, err)
		}
		d.Columns = append(d.Columns, name)

		parts := []string{dataType}
		if nullable == "NO" {
			parts = append(parts, "NOT NULL")
		}
		if colDefault != nil && *colDefault != "" {
			parts = append(parts, "DEFAULT "+*colDefault)
		}
		d.ColumnNotes[name] = strings.Join(parts, " ")
	}
	if err := rows.Err(); err != nil {
		return models.SchemaDescriptor{}, fmt.Errorf("list columns for %q: %w", table, err)
	}
	return d, nil
}

func (c *PostgresCatalog) loadForeignKeys(ctx context.Context, conn *pgxpool.Conn) (map[string][]string, error) {
	rows, err := conn.Query(ctx, listForeignKeysSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rels := make(map[string][]string)
	for rows.Next() {
		var table, column, refTable, refColumn string
		if err := rows.Scan(&table, &column, &refTable, &refColumn); err != nil {
			return nil, err
		}
		rels[table] = append(rels[table],
			fmt.Sprintf("%s.%s -> %s.%s", table, column, refTable, refColumn))
	}
	return rels, rows.Err()
}

// FormatDescriptors renders descriptors into the compact text block handed
// to the generator.
func FormatDescriptors(descriptors []models.SchemaDescriptor) string {
	if len(descriptors) == 0 {
		return "(No schema context available.)"
	}

	var sb strings.Builder
	for i, d := range descriptors {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("TABLE: " + d.Name)
		sb.WriteString("\n  Description: " + d.Description)
		sb.WriteString("\n  Columns: " + strings.Join(d.Columns, ", "))

		if len(d.ColumnNotes) > 0 {
			sb.WriteString("\n  Column Details:")
			// Follow column order, not map order, so output is stable.
			for _, col := range d.Columns {
				if note, ok := d.ColumnNotes[col]; ok {
					sb.WriteString("\n    - " + col + ": " + note)
				}
			}
		}
		if len(d.Relationships) > 0 {
			sb.WriteString("\n  Joins: " + strings.Join(d.Relationships, "; "))
		}
	}
	return sb.String()
}
