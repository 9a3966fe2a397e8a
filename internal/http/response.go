package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/ride-sharing/internal/apperr"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindUnauthorized:
		return http.StatusForbidden
	case apperr.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error","code"}. Storage and unclassified
// failures are logged with their cause and answered with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		s.logger.Error("unhandled error", "error", err, "route", routeTemplate(r), "request_id", requestIDFromContext(r.Context()))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"})
		return
	}
	status := statusFor(ae.Kind)
	if ae.Kind == apperr.KindStorageUnavailable {
		s.logger.Error("storage failure", "error", err, "route", routeTemplate(r), "request_id", requestIDFromContext(r.Context()))
		writeJSON(w, status, errorBody{Error: apperr.ErrStorageUnavailable.Msg, Code: ae.Code})
		return
	}
	writeJSON(w, status, errorBody{Error: ae.Msg, Code: ae.Code})
}
