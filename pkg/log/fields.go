package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Signaling
	FieldClientID = "client_id"
	FieldRoom     = "room"
	FieldMsgType  = "msg_type"

	// Service
	FieldService = "service"
)
