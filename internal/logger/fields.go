package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, carried on the context through a parse run.
const (
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldComponent = "component"
	// FieldFileRef is the opaque file reference currently being processed.
	FieldFileRef = "file_ref"
	// FieldStage names the pipeline stage (acquire, extract, classify, ...).
	FieldStage = "stage"
	FieldPage  = "page"
)

// Metric fields, attached per entry for aggregation.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
)
