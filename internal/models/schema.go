package models

// SchemaDescriptor describes one table as handed to the SQL generator.
// Sourced from the catalog; treated as read-only and authoritative.
type SchemaDescriptor struct {
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Columns       []string          `json:"columns"`
	ColumnNotes   map[string]string `json:"column_notes,omitempty"`
	Relationships []string          `json:"relationships,omitempty"`
}
