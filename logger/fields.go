package logger

import "time"

// Standard field keys.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldTraceID   = "trace_id"
	FieldUpstream  = "upstream"
	FieldMethod    = "method"
	FieldEndpoint  = "endpoint"
	FieldAttempt   = "attempt"
	FieldStage     = "stage"
	FieldError     = "error"
	FieldDuration  = "duration_ms"
)

// Fields builds a field map from alternating key-value pairs.
//
//	log.Info("invoice created", logger.Fields("invoice_id", id))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for an operation that failed.
func ErrorFields(op string, err error) map[string]interface{} {
	return map[string]interface{}{
		"operation": op,
		FieldError:  err.Error(),
	}
}

// DurationFields creates fields for a timed operation.
func DurationFields(op string, d time.Duration) map[string]interface{} {
	return map[string]interface{}{
		"operation":   op,
		FieldDuration: d.Milliseconds(),
	}
}
