package core

import "strings"

const RedactedValue = "[REDACTED]"

// sensitiveMarkers match anywhere in a lowercased key.
var sensitiveMarkers = [...]string{
	"password",
	"secret",
	"token",
	"authorization",
	"api_key",
	"apikey",
	"x-api-key",
	"bearer",
	"credential",
}

// traceableKeys stay visible even when they contain a sensitive marker.
var traceableKeys = map[string]struct{}{
	"idempotency_key":   {},
	"x-idempotency-key": {},
	"request_id":        {},
	"attempt_id":        {},
	"trace_id":          {},
	"identifier_kinds":  {},
}

// RedactSensitiveMap returns a copy of fields with credential-like keys
// replaced by RedactedValue. Nested maps and slices are walked.
func RedactSensitiveMap(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		out[key] = redactEntry(key, value)
	}
	return out
}

func redactEntry(key string, value any) any {
	if isSensitiveKey(key) {
		return RedactedValue
	}
	switch typed := value.(type) {
	case map[string]any:
		return RedactSensitiveMap(typed)
	case map[string]string:
		out := make(map[string]any, len(typed))
		for nestedKey, item := range typed {
			out[nestedKey] = redactEntry(nestedKey, item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = redactEntry("", item)
		}
		return out
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	if _, ok := traceableKeys[key]; ok {
		return false
	}
	for _, marker := range sensitiveMarkers {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}
