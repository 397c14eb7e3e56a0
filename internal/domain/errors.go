package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrUnpricedProduct     = errors.New("product has no catalog price")
)

// ValidationError collects field level problems with user input.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = message
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// Merge copies the fields of other into e. A nil other is a no-op.
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	for k, v := range other.Fields {
		e.Fields[k] = v
	}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
