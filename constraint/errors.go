package constraint

import (
	"errors"
	"fmt"

	"github.com/jacentio/murmur/model"
)

var (
	// ErrValidation is wrapped by every ValidationError.
	ErrValidation = errors.New("murmur: validation failed")

	// ErrUniqueness is wrapped by every UniquenessError.
	ErrUniqueness = errors.New("murmur: duplicate value for unique field")
)

// Rules reported by ValidationError.
const (
	RuleUnknown   = "unknown"
	RuleManaged   = "managed"
	RuleRequired  = "required"
	RuleType      = "type"
	RuleFormat    = "format"
	RuleMaxLength = "max"
	RuleEnum      = "oneof"
)

// ValidationError rejects a write because of a single offending field.
type ValidationError struct {
	Kind    model.Kind
	Field   string
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("murmur: invalid %s.%s: %s", e.Kind, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// UniquenessError rejects a write whose unique field value is already taken.
type UniquenessError struct {
	Kind  model.Kind
	Field string
	Value string
}

func (e *UniquenessError) Error() string {
	return fmt.Sprintf("murmur: %s with %s %q already exists", e.Kind, e.Field, e.Value)
}

func (e *UniquenessError) Unwrap() error { return ErrUniqueness }

// NewUniquenessError is used by store backends when the storage-level
// constraint rejects a write.
func NewUniquenessError(kind model.Kind, field, value string) error {
	return &UniquenessError{Kind: kind, Field: field, Value: value}
}

func reject(kind model.Kind, field, rule, format string, args ...any) error {
	return &ValidationError{Kind: kind, Field: field, Rule: rule, Message: fmt.Sprintf(format, args...)}
}
