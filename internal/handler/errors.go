package handler

import (
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/heylo/heylo/internal/handler/dto"
	"github.com/heylo/heylo/internal/middleware"
	"github.com/heylo/heylo/internal/service"
)

// ErrorWriter maps service errors to HTTP responses.
type ErrorWriter struct {
	logger    *slog.Logger
	withStack bool
}

// NewErrorWriter creates an ErrorWriter. withStack adds the error chain to
// response bodies and must be off in production.
func NewErrorWriter(logger *slog.Logger, withStack bool) *ErrorWriter {
	return &ErrorWriter{logger: logger, withStack: withStack}
}

// Handle writes the response for err.
func (e *ErrorWriter) Handle(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		e.Write(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
		return
	case errors.Is(err, errInvalidJSON):
		e.Write(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	case errors.Is(err, service.ErrUnauthenticated):
		middleware.WriteAuthError(w)
		return
	}

	status := statusFor(err)
	resp := dto.ErrorResponse{Message: "Internal server error", Code: "INTERNAL_ERROR"}

	var svcErr *service.Error
	if status != http.StatusInternalServerError && errors.As(err, &svcErr) {
		resp.Message = svcErr.Message
		resp.Code = svcErr.Code
		resp.Fields = fieldErrors(svcErr.Err)
	}
	if status == http.StatusInternalServerError {
		e.logger.Error("internal_error",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
	}
	if e.withStack {
		resp.Stack = err.Error()
	}
	writeJSON(w, status, resp)
}

// Write writes an error body that did not come from a service.
func (e *ErrorWriter) Write(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Message: message,
		Code:    code,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrPrecondition):
		return http.StatusConflict
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrUnauthenticated):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// fieldErrors flattens ozzo field errors into field -> message.
func fieldErrors(err error) map[string]string {
	var verrs validation.Errors
	if err == nil || !errors.As(err, &verrs) || len(verrs) == 0 {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for field, ferr := range verrs {
		if ferr != nil {
			fields[field] = ferr.Error()
		}
	}
	return fields
}
