package models

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// QueryResponse is the single caller-facing outcome of POST /api/v1/query.
// Both successes and pipeline rejections use this shape; only the status,
// stage and error fields differ.
type QueryResponse struct {
	RequestID           string                   `json:"request_id"`
	SQL                 string                   `json:"sql"`
	Data                []map[string]interface{} `json:"data"`
	Columns             []string                 `json:"columns"`
	RowCount            int                      `json:"row_count"`
	ExecutionTime       float64                  `json:"execution_time"`
	Explanation         string                   `json:"explanation"`
	PersonalizationUsed bool                     `json:"personalization_used"`
	Status              string                   `json:"status"`
	Stage               string                   `json:"stage,omitempty"`
	Error               string                   `json:"error,omitempty"`
}

// TableResponse is returned by the schema inspection endpoints.
type TableResponse struct {
	Tables []SchemaDescriptor `json:"tables"`
	Count  int                `json:"count"`
}
