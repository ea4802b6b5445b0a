package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Domain
	FieldFID       = "fid"
	FieldCastHash  = "cast_hash"
	FieldReplyHash = "reply_hash"
	FieldStage     = "stage"

	// Queue
	FieldTopic    = "topic"
	FieldJobID    = "job_id"
	FieldGroup    = "group"
	FieldConsumer = "consumer"

	// Service
	FieldService = "service"
)
