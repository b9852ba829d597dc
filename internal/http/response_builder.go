// This file implements a small builder for JSON responses so handlers share
// one encoding path and one error envelope.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"cashflow/internal/core"
	"cashflow/internal/ledger"
	"cashflow/internal/services"
	"cashflow/internal/simulation"
)

// ErrorBody is the envelope of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// JSONResponseBuilder provides a fluent API for JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       interface{}
	headers    map[string]string
}

// NewJSONResponse creates a builder with a 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v interface{}) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the response. A nil body writes only headers and status.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n"))
}

// ErrorResponse creates an error response with the standard envelope.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(ErrorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// ErrorFor maps a service error onto a status code. Validation problems are
// 422 with the error text as details; unknown errors are 500 with a generic
// message.
func ErrorFor(err error) *JSONResponseBuilder {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError("not found")
	case errors.Is(err, ledger.ErrConflict):
		return NewJSONResponse().Status(http.StatusConflict).Body(ErrorBody{Error: "conflict", Details: err.Error()})
	case errors.Is(err, services.ErrInvalidFilters):
		return NewJSONResponse().Status(http.StatusBadRequest).Body(ErrorBody{Error: "invalid filters", Details: err.Error()})
	case errors.Is(err, services.ErrNothingToImport):
		return NewJSONResponse().Status(http.StatusUnprocessableEntity).Body(ErrorBody{Error: "nothing to import"})
	case isValidation(err):
		return NewJSONResponse().Status(http.StatusUnprocessableEntity).Body(ErrorBody{Error: "validation failed", Details: err.Error()})
	default:
		return InternalServerError("internal error")
	}
}

var validationErrors = []error{
	core.ErrInvalidDate,
	core.ErrInvalidDay,
	core.ErrInvalidMonth,
	core.ErrInvalidAmount,
	core.ErrInvalidType,
	core.ErrInvalidStatus,
	core.ErrInvalidPaymentStatus,
	core.ErrInvalidOrigin,
	core.ErrInvalidLevel,
	core.ErrInvalidSublevel,
	core.ErrEmptyName,
	core.ErrDescriptionTooLong,
	services.ErrInvalidInstallments,
	simulation.ErrInvalidVariable,
}

func isValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
