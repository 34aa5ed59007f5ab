package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"todo-assistant/internal/service"
)

const GeneralErrorKey = "general"

// Error codes used in field-level validation messages.
const (
	MissedValue             = "missed_value"
	InvalidValue            = "invalid_value"
	InvalidRequestStructure = "invalid_request_structure"
)

// ErrorMessage describes why one field was rejected.
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error is an HTTP-ready failure.
type Error interface {
	error
	Status() int
}

type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }
func (e *httpError) Status() int   { return e.status }

func NewInternalError() Error {
	return &httpError{status: http.StatusInternalServerError, message: "internal error"}
}

func NewNotFoundError(message string) Error {
	return &httpError{status: http.StatusNotFound, message: message}
}

func NewForbiddenError(message string) Error {
	return &httpError{status: http.StatusForbidden, message: message}
}

func NewUpstreamError(message string) Error {
	return &httpError{status: http.StatusBadGateway, message: message}
}

func NewUnavailableError(message string) Error {
	return &httpError{status: http.StatusServiceUnavailable, message: message}
}

// ValidationError collects field-keyed rejections.
type ValidationError struct {
	Errors map[string]ErrorMessage
}

func NewValidationError(fields ...map[string]ErrorMessage) *ValidationError {
	ve := &ValidationError{Errors: map[string]ErrorMessage{}}
	for _, f := range fields {
		for k, v := range f {
			ve.Errors[k] = v
		}
	}
	return ve
}

func (e *ValidationError) SetError(key, code, message string) {
	e.Errors[key] = ErrorMessage{Code: code, Message: message}
}

func (e *ValidationError) Status() int { return http.StatusBadRequest }

func (e *ValidationError) Error() string {
	if general, ok := e.Errors[GeneralErrorKey]; ok {
		return general.Message
	}
	for _, msg := range e.Errors {
		return msg.Message
	}
	return "validation failed"
}

// ResolveError maps service errors onto HTTP errors.
func ResolveError(err error) Error {
	var re Error
	if errors.As(err, &re) {
		return re
	}
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		out := NewValidationError()
		out.SetError(ve.Field, InvalidValue, ve.Message)
		return out
	case errors.Is(err, service.ErrTaskNotFound):
		return NewNotFoundError("Task not found")
	case errors.Is(err, service.ErrSessionNotFound):
		return NewNotFoundError("Session not found")
	case errors.Is(err, service.ErrNoActiveSession):
		return NewForbiddenError("No active session for this phone number")
	case errors.Is(err, service.ErrAgentNotConfigured):
		return NewUnavailableError("Agent is not configured")
	case errors.Is(err, service.ErrUpstreamUnavailable):
		return NewUpstreamError("Upstream agent failed. Please try again later.")
	default:
		return NewInternalError()
	}
}

// HandleError writes the web API error shape: {"error": ..., "errors": {...}}.
func HandleError(err error, c *gin.Context) {
	resolved := ResolveError(err)
	body := gin.H{"error": resolved.Error()}
	if ve, ok := resolved.(*ValidationError); ok {
		body["errors"] = ve.Errors
	}
	c.AbortWithStatusJSON(resolved.Status(), body)
}

// HandleChatError writes the chat integration shape: {"success": false, "error": ...}.
func HandleChatError(err error, c *gin.Context) {
	resolved := ResolveError(err)
	c.AbortWithStatusJSON(resolved.Status(), gin.H{"success": false, "error": resolved.Error()})
}
