package engine

import (
	"encoding/json"
	"net/http"

	"github.com/mesworks/shopsched/pkg/apperrors"
)

// statusFromKind maps a service error kind to an HTTP status code. This is the
// only place the mapping exists.
func statusFromKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindPermissionDenied:
		return http.StatusForbidden
	case apperrors.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func titleFromStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return "Not Found"
	case http.StatusBadRequest:
		return "Bad Request"
	case http.StatusConflict:
		return "Conflict"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusUnauthorized:
		return "Unauthorized"
	default:
		return "Internal Server Error"
	}
}

func (e *Engine) writeJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		e.logger.Errorf("Failed to encode response: %v", err)
	}
}

// writeServiceError translates a service error to the problem document.
// Internal causes are logged and never serialized.
func (e *Engine) writeServiceError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	status := statusFromKind(kind)

	detail := err.Error()
	if kind == apperrors.KindInternal {
		e.logger.Errorf("Internal error: %v", err)
		detail = "an internal error occurred"
	}

	e.writeJSONResponse(w, status, ProblemResponse{
		Status: status,
		Title:  titleFromStatus(status),
		Detail: detail,
		Code:   kind.String(),
		Errors: apperrors.FieldsOf(err),
	})
}

// writeBadRequest reports a malformed request body
func (e *Engine) writeBadRequest(w http.ResponseWriter, detail string) {
	e.writeJSONResponse(w, http.StatusBadRequest, ProblemResponse{
		Status: http.StatusBadRequest,
		Title:  titleFromStatus(http.StatusBadRequest),
		Detail: detail,
		Code:   apperrors.KindValidation.String(),
	})
}
