package model

import (
	"errors"
	"fmt"
)

// Error definitions for the model package.
var (
	// ErrInvalidLanguage is matched by every engine load failure.
	ErrInvalidLanguage = errors.New("invalid language")

	errEmptyLanguage = errors.New("empty language code")
)

// LoadError reports a failed engine load for one language.
// It matches both ErrInvalidLanguage and the engine's cause with errors.Is.
type LoadError struct {
	Err      error
	Language string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load language '%s': %v", e.Language, e.Err)
}

func (e *LoadError) Unwrap() []error {
	return []error{ErrInvalidLanguage, e.Err}
}
