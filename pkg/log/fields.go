package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID   = "user_id"
	FieldClientID = "client_id"
	FieldIdentity = "identity"

	// Classification
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
