package log

import (
	"time"

	"go.uber.org/zap"
)

// HTTPRequest describes one served request.
type HTTPRequest struct {
	Method     string
	Path       string
	Status     int
	Duration   time.Duration
	Size       int
	RemoteAddr string
	UserAgent  string
	Err        error
}

// LogHTTPRequest writes r to logger, at error level when the request failed.
func LogHTTPRequest(logger *zap.SugaredLogger, r HTTPRequest) {
	fields := []any{
		"method", r.Method,
		"path", r.Path,
		"status", r.Status,
		"duration_ms", r.Duration.Milliseconds(),
		"size", r.Size,
		"remote_addr", r.RemoteAddr,
		"user_agent", r.UserAgent,
	}
	if r.Err != nil || r.Status >= 500 {
		if r.Err != nil {
			fields = append(fields, "error", r.Err.Error())
		}
		logger.Errorw("http request", fields...)
		return
	}
	logger.Infow("http request", fields...)
}
