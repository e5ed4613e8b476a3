// internal/server/respond.go
package server

import (
	"errors"
	"log/slog"
	"net/http"

	"lendingdesk/internal/catalog"
	"lendingdesk/internal/errs"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = codec.NewEncoder(w).Encode(v)
}

func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindLimitExceeded:
		return http.StatusUnprocessableEntity
	case errs.KindDuplicate, errs.KindUnavailable, errs.KindAlreadyReturned, errs.KindOverdue:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err onto a status code and an ErrorResponse body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var e *errs.Error
	if !errors.As(err, &e) {
		if errors.Is(err, catalog.ErrUnencodable) {
			writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
			return
		}
		s.logger.ErrorContext(r.Context(), "request failed",
			slog.String("request_id", RequestIDFrom(r.Context())),
			slog.Any("error", err),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, statusFor(e.Kind), ErrorResponse{
		Error:       e.Error(),
		Kind:        e.Kind.String(),
		Op:          e.Op,
		Entity:      e.Entity,
		ID:          e.ID,
		Message:     e.Message,
		OverdueDays: e.OverdueDays,
	})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Kind: errs.KindValidation.String(), Message: msg})
}
