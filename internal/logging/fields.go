package logging

import "log/slog"

// Common field names for consistent logging across the gateway.
// Every pipeline stage logs with FieldEventID so a single event's trail
// can be reassembled from the trace.
const (
	FieldService  = "service"
	FieldEventID  = "event_id"
	FieldSource   = "source"
	FieldTopic    = "topic"
	FieldAction   = "action"
	FieldReason   = "reason"
	FieldIP       = "ip"
	FieldMethod   = "method"
	FieldPath     = "path"
	FieldStatus   = "status"
	FieldDuration = "duration_ms"
	FieldError    = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// EventID returns a slog attribute for an event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// Source returns a slog attribute for the webhook source name.
func Source(name string) slog.Attr {
	return slog.String(FieldSource, name)
}

// Topic returns a slog attribute for the declared event topic.
func Topic(topic string) slog.Attr {
	return slog.String(FieldTopic, topic)
}

// Action returns a slog attribute for the declared event action.
func Action(action string) slog.Attr {
	return slog.String(FieldAction, action)
}

// Reason returns a slog attribute for a failure reason.
func Reason(reason string) slog.Attr {
	return slog.String(FieldReason, reason)
}

// IP returns a slog attribute for the IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
