package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldVideoID is the video being analyzed
	FieldVideoID = "video_id"

	// FieldTeacherID is the teacher the video belongs to
	FieldTeacherID = "teacher_id"

	// FieldTemplateID is the rubric template in use
	FieldTemplateID = "template_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldModel is the vision model identifier
	FieldModel = "model"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldTokens is the total token count of a model call
	FieldTokens = "tokens"

	// FieldCostUSD is the estimated spend in US dollars
	FieldCostUSD = "cost_usd"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
