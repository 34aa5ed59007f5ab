package service

import (
	"errors"
	"fmt"
)

var (
	ErrTaskNotFound        = errors.New("task not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrNoActiveSession     = errors.New("no active session for this address")
	ErrUpstreamUnavailable = errors.New("upstream agent unavailable")
	ErrAgentNotConfigured  = errors.New("agent not configured")
)

// ValidationError rejects input before it reaches the store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
