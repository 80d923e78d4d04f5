package web

// errors.go maps import errors to HTTP responses.
//
// The technical error is logged with the request id; the client receives the
// core.MapError message and code. Status codes:
//
//	*core.SetupError (user id)       400
//	request body over the size limit 413
//	*core.SetupError (other)         422
//	ErrTooManyImports                429
//	*core.BatchCommitError           502
//	context.DeadlineExceeded         504
//	anything else                    500

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/kartlog/internal/core"
	"github.com/JonMunkholm/kartlog/internal/logging"
)

// ErrorResponse is the JSON body of every error response. Summary is set
// when a run got as far as committing.
type ErrorResponse struct {
	Error   string           `json:"error"`
	Action  string           `json:"action,omitempty"`
	Code    string           `json:"code"`
	Summary *core.RunSummary `json:"summary,omitempty"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var (
		setupErr  *core.SetupError
		commitErr *core.BatchCommitError
		tooLarge  *http.MaxBytesError
	)
	switch {
	case errors.Is(err, ErrTooManyImports):
		return http.StatusTooManyRequests
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &setupErr):
		if setupErr.Op == "user id" {
			return http.StatusBadRequest
		}
		return http.StatusUnprocessableEntity
	case errors.As(err, &commitErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes its mapped JSON response.
func respondError(w http.ResponseWriter, r *http.Request, err error, summary *core.RunSummary) {
	status := statusFor(err)
	msg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Summary: summary,
	})
}
