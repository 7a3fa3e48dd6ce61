package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields, propagated through the call chain.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldArtworkID is the catalog identity of the artwork being processed
	FieldArtworkID = "artwork_id"

	// FieldStyle is the narration style of the current request
	FieldStyle = "style"

	// FieldSource is the recognition source (vlm, kimi, vector_search)
	FieldSource = "source"
)

// Standard metric fields, used for aggregation and alerting.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"

	// FieldSimilarity is a vector match score
	FieldSimilarity = "similarity"
)
