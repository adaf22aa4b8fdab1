package log

import (
	"time"
)

// HTTPLogEntry represents an HTTP request/response log entry
type HTTPLogEntry struct {
	Method     string
	Path       string
	Status     int
	Duration   time.Duration
	Size       int
	RemoteAddr string
	UserAgent  string
	Error      error
}

// LogHTTPRequest writes one structured line per request. Server errors are
// logged at error level, everything else at info.
func LogHTTPRequest(entry HTTPLogEntry) {
	fields := []interface{}{
		"method", entry.Method,
		"path", entry.Path,
		"status", entry.Status,
		"duration_ms", entry.Duration.Milliseconds(),
		"size", entry.Size,
		"remote_addr", entry.RemoteAddr,
		"user_agent", entry.UserAgent,
	}

	if entry.Error != nil || entry.Status >= 500 {
		if entry.Error != nil {
			fields = append(fields, "error", entry.Error.Error())
		}
		GetSugaredLogger().Errorw("http request", fields...)
		return
	}
	GetSugaredLogger().Infow("http request", fields...)
}
