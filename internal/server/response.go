package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/conneroisu/sentra/internal/errors"
	"github.com/conneroisu/sentra/internal/logging"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError logs err and writes it as {"error", "code"} with the status its
// type maps to. Internal failures never leak their message.
func writeError(ctx context.Context, w http.ResponseWriter, logger logging.Logger, err error) {
	errors.NewErrorHandler(logger).Handle(ctx, err)

	status, msg := publicError(err)
	writeJSON(w, status, errorResponse{Error: msg, Code: errors.CodeOf(err)})
}

// publicError returns the status for err and the message safe to show a
// client.
func publicError(err error) (int, string) {
	status := errors.HTTPStatus(err)
	msg := http.StatusText(status)

	var se *errors.SentraError
	if stderrors.As(err, &se) && (status < http.StatusInternalServerError || status == http.StatusBadGateway) {
		msg = se.Message
	}
	return status, msg
}

// decodeJSON reads a JSON body into v. Oversized bodies map to 413.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return errors.NewTooLargeError(errors.ErrCodeSourceTooLarge, "request body too large")
		}
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "invalid JSON body")
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, logger logging.Logger, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(r.Context(), w, logger,
		errors.NewValidationError(errors.ErrCodeMethodNotAllowed, "method not allowed"))
}
