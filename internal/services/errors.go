package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrContactNotFound     = errors.New("contact not found")
	ErrProtectedContact    = errors.New("protected contacts cannot be changed or removed")
	ErrDispatchInProgress  = errors.New("an emergency dispatch is already in progress")
	ErrSpeechUnsupported   = errors.New("speech recognition is not supported")
	ErrAlreadyListening    = errors.New("voice detection is already active")
	ErrNotListening        = errors.New("voice detection is not active")
	ErrEmptyMessage        = errors.New("message is empty")
	ErrMessageTooLong      = errors.New("message is too long")
	ErrInvalidTrigger      = errors.New("invalid trigger method")
	ErrLocationUnavailable = errors.New("location unavailable")
)

// ValidationError carries per-field messages keyed by json field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}

	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+" "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Has reports whether field failed validation.
func (e *ValidationError) Has(field string) bool {
	_, ok := e.Fields[field]
	return ok
}
