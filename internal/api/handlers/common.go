// Package handlers provides HTTP request handlers for the portsweep API.
// This file contains common utilities shared across all handlers so that
// responses, errors and request parsing behave the same on every endpoint.
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/anstrom/portsweep/internal/api/middleware"
	"github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/logging"
)

// maxRequestSize caps JSON bodies when no outer limit is configured.
const maxRequestSize = 1 << 20

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// getRequestIDFromContext extracts the request ID set by the middleware.
func getRequestIDFromContext(r *http.Request) string {
	return middleware.GetRequestID(r)
}

// extractIDFromPath extracts and validates the scan UUID path parameter.
func extractIDFromPath(r *http.Request) (string, error) {
	idStr, exists := mux.Vars(r)["id"]
	if !exists || strings.TrimSpace(idStr) == "" {
		return "", fmt.Errorf("id not provided")
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return "", fmt.Errorf("invalid id: %s", idStr)
	}
	return id.String(), nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; only log.
		logging.Error("Failed to encode JSON response",
			"request_id", getRequestIDFromContext(r),
			"path", r.URL.Path,
			"error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	response := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
		RequestID: getRequestIDFromContext(r),
	}
	if code := errors.GetCode(err); code != errors.CodeUnknown {
		response.Code = string(code)
	}

	writeJSON(w, r, statusCode, response)
}

// statusForError maps coded errors onto HTTP status codes.
func statusForError(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeValidation, errors.CodeInvalidHostSpec, errors.CodeInvalidPortSpec,
		errors.CodeTooManyHosts:
		return http.StatusBadRequest
	case errors.CodeScanNotFound:
		return http.StatusNotFound
	case errors.CodeTooManyScans:
		return http.StatusTooManyRequests
	case errors.CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// parseJSON decodes the request body into dest and validates it.
func parseJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return errors.NewScanError(errors.CodeValidation, "request body is empty")
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestSize+1))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dest); err != nil {
		if err == io.EOF {
			return errors.NewScanError(errors.CodeValidation, "request body is empty")
		}
		return errors.WrapScanError(errors.CodeValidation, "invalid JSON", err)
	}

	return validateRequest(dest)
}

// validateRequest runs struct tag validation and flattens the failures into
// one validation error.
func validateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.WrapScanError(errors.CodeValidation, "invalid request", err)
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, describeFieldError(fe))
	}
	return errors.NewScanError(errors.CodeValidation, strings.Join(messages, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
