package log

import "go.uber.org/zap"

var (
	// Internal mark the error severe, due to issues in code.
	Internal = zap.String("severe_error", "internal")
)

const redacted = "<redacted>"

// Redacted logs that key was present without logging its value.
func Redacted(key string) zap.Field {
	return zap.String(key, redacted)
}
