package seeder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/foxzi/mailseed/internal/catalog"
)

var (
	// ErrSessionNotFound is returned when an operation needs an existing session
	ErrSessionNotFound = errors.New("session not found")

	// ErrAlreadySeeded is returned when generate targets a seeded session
	ErrAlreadySeeded = errors.New("session already seeded")
)

// ValidationFailedError carries every problem found in a rejected dataset
type ValidationFailedError struct {
	Errors []catalog.ValidationError
}

func (e *ValidationFailedError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("seed data failed validation: %s", e.Errors[0])
	}

	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.String()
	}
	return fmt.Sprintf("seed data failed validation with %d errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}
