package web

// errors.go provides the single error path for the API.
//
// Every failing handler calls respondError, which logs the technical error
// with the request id and writes a JSON body built from core.MapError:
//
//	{"detail": "<message>", "error": {"message": ..., "action": ..., "code": ...}}
//
// detail mirrors the message so clients that only read a flat string still work.

import (
	"net/http"

	"github.com/JonMunkholm/grades/internal/core"
	"github.com/JonMunkholm/grades/internal/logging"
)

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Detail string           `json:"detail"`
	Error  core.UserMessage `json:"error"`
}

// respondError logs err and writes the mapped user message with statusCode.
// 5xx responses are logged at error level, everything else at warn.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", msg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	writeJSON(w, statusCode, ErrorResponse{Detail: msg.Message, Error: msg})
}
