package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/render"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ownership-cli/internal/assign"
	"github.com/sells-group/ownership-cli/internal/pipeline"
	"github.com/sells-group/ownership-cli/internal/resilience"
	"github.com/sells-group/ownership-cli/internal/store"
	"github.com/sells-group/ownership-cli/pkg/servicenow"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	respond(w, r, status, errorResponse{Error: msg})
}

// respondErr maps err onto a status code and logs server-side failures.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	respondError(w, r, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case eris.Is(err, assign.ErrInvalidRequest):
		return http.StatusBadRequest
	case eris.Is(err, assign.ErrAssignmentNotFound),
		eris.Is(err, servicenow.ErrUserNotFound),
		eris.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case eris.Is(err, assign.ErrAlreadyUndone), eris.Is(err, assign.ErrNotUndoable):
		return http.StatusConflict
	case eris.Is(err, assign.ErrVerifyFailed), eris.Is(err, pipeline.ErrNoCIs):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	switch code := resilience.StatusCode(err); code {
	case 0:
		return http.StatusInternalServerError
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return code
	default:
		return http.StatusBadGateway
	}
}

// decode reads an optional JSON body. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := render.DecodeJSON(r.Body, v); err != nil && !errors.Is(err, io.EOF) {
		return eris.Wrap(err, "invalid request body")
	}
	return nil
}
