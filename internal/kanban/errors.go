package kanban

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)

// NotFoundError reports a referenced id that does not exist at operation time.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %d not found", e.Entity, e.ID) }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NotFound(entity string, id int64) error { return &NotFoundError{Entity: entity, ID: id} }

// Validation failure reasons.
const (
	ReasonRequired       = "required"
	ReasonMinLength      = "min_length"
	ReasonWrongType      = "wrong_type"
	ReasonUnknownField   = "unknown_field"
	ReasonMalformed      = "malformed"
	ReasonDifferentBoard = "different_board"
)

type FieldError struct {
	Field   string `json:"field"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed; it is never returned empty.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Field == "" {
			parts = append(parts, f.Message)
			continue
		}
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason, msg string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Reason: reason, Message: msg}}}
}
